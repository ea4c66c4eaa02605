package mailbox

import (
	"context"
	"sort"
	"sync"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
)

// Session is a single stateful connection to the remote mailbox, scoped
// to one folder at a time. It must not be shared between concurrent
// operations: the selected folder and sequence numbering live on the
// connection. Close is safe to call on every exit path and logs out
// exactly once.
type Session struct {
	client    *imapclient.Client
	folder    string
	total     int
	closeOnce sync.Once
	closeErr  error
}

// Close logs out of the IMAP session. Repeated calls are no-ops.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.client.Logout().Wait()
	})
	return s.closeErr
}

// selectFolder selects the folder if it is not already selected and
// records the folder's total message count.
func (s *Session) selectFolder(folder string) error {
	if s.folder == folder {
		return nil
	}
	data, err := s.client.Select(folder, nil).Wait()
	if err != nil {
		return &ProtocolError{Op: "selecting " + folder, Err: err}
	}
	s.folder = folder
	s.total = int(data.NumMessages)
	return nil
}

// seqWindow computes the 1-based sequence range covering one
// reverse-chronological page. IMAP sequence numbers count from the
// oldest message, so page p of size limit maps to the range
// [total-offset-limit+1, total-offset], clamped to the mailbox. An
// empty window (start > end) means the page is past the end.
func seqWindow(total, limit, offset int) (start, end int, ok bool) {
	start = total - offset - limit + 1
	if start < 1 {
		start = 1
	}
	end = total - offset
	return start, end, start <= end
}

// rawMessage holds the fetched-but-unparsed state of one message.
type rawMessage struct {
	seqNum uint32
	isRead bool
	body   []byte
}

// ListMessages fetches one page of messages from folder, newest first.
// limit is the page size and offset the number of newest messages to
// skip. Messages whose bodies fail to parse are dropped from the page;
// the page resolves only after every fetched message has been attempted.
func (s *Session) ListMessages(ctx context.Context, folder string, limit, offset int) (Page, error) {
	if err := s.selectFolder(folder); err != nil {
		return Page{}, err
	}

	if s.total == 0 {
		return Page{Total: 0}, nil
	}

	start, end, ok := seqWindow(s.total, limit, offset)
	if !ok {
		return Page{Total: s.total}, nil
	}

	bodySection := &imap.FetchItemBodySection{Peek: true}

	var seqSet imap.SeqSet
	seqSet.AddRange(uint32(start), uint32(end))

	fetchCmd := s.client.Fetch(seqSet, &imap.FetchOptions{
		Flags:       true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	})

	var raws []rawMessage
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}
		buf, err := msg.Collect()
		if err != nil {
			continue
		}
		raws = append(raws, rawMessage{
			seqNum: buf.SeqNum,
			isRead: hasFlag(buf.Flags, imap.FlagSeen),
			body:   buf.FindBodySection(bodySection),
		})
	}
	if err := fetchCmd.Close(); err != nil {
		return Page{}, &ProtocolError{Op: "fetching " + folder, Err: err}
	}

	if err := ctx.Err(); err != nil {
		return Page{}, err
	}

	return assemblePage(raws, s.total), nil
}

// assemblePage fans out one parse per fetched message, joins on all of
// them, and orders the survivors. A failed parse leaves its slot empty
// instead of failing the page; the page resolves only after every
// message has been attempted.
func assemblePage(raws []rawMessage, total int) Page {
	type slot struct {
		msg Message
		ok  bool
	}
	slots := make([]slot, len(raws))

	var wg sync.WaitGroup
	for i, raw := range raws {
		wg.Add(1)
		go func(i int, raw rawMessage) {
			defer wg.Done()
			msg, err := parseMessage(raw.body)
			if err != nil {
				return
			}
			msg.SeqNum = raw.seqNum
			msg.IsRead = raw.isRead
			slots[i] = slot{msg: msg, ok: true}
		}(i, raw)
	}
	wg.Wait()

	messages := make([]Message, 0, len(slots))
	for _, sl := range slots {
		if sl.ok {
			messages = append(messages, sl.msg)
		}
	}

	// Parse completion order is nondeterministic; order by date, newest
	// first, with the sequence number as a stable tiebreaker.
	sort.SliceStable(messages, func(i, j int) bool {
		if messages[i].Date.Equal(messages[j].Date) {
			return messages[i].SeqNum > messages[j].SeqNum
		}
		return messages[i].Date.After(messages[j].Date)
	})

	return Page{Messages: messages, Total: total}
}

// SetReadState adds or removes the \Seen flag on the message with the
// given sequence number, reselecting the folder if needed.
func (s *Session) SetReadState(_ context.Context, folder string, seqNum uint32, read bool) error {
	if err := s.selectFolder(folder); err != nil {
		return err
	}

	op := imap.StoreFlagsAdd
	if !read {
		op = imap.StoreFlagsDel
	}

	storeCmd := s.client.Store(imap.SeqSetNum(seqNum), &imap.StoreFlags{
		Op:     op,
		Silent: true,
		Flags:  []imap.Flag{imap.FlagSeen},
	}, nil)

	if err := storeCmd.Close(); err != nil {
		return &ProtocolError{Op: "storing flags", Err: err}
	}
	return nil
}

func hasFlag(flags []imap.Flag, want imap.Flag) bool {
	for _, f := range flags {
		if f == want {
			return true
		}
	}
	return false
}
