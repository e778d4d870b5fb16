package libemit

import (
	"context"
	"io"
	"math"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// FeedEvent names the events a WsFeed emits.
type FeedEvent string

const (
	FeedConnect   FeedEvent = "connect"
	FeedReconnect FeedEvent = "reconnect"
	FeedClose     FeedEvent = "close"
	FeedMessage   FeedEvent = "message"
	FeedPing      FeedEvent = "ping"
	FeedPong      FeedEvent = "pong"
)

const (
	feedWriteWait  = time.Second
	feedSendBuffer = 32
	feedOpenPoll   = 10 * time.Millisecond
	maxBackoff     = 30 * time.Second
)

var ErrFeedOpen = errors.New("feed is already open")

type (
	CloseChan chan struct{}

	OpenParams struct {
		URL    url.URL
		Header http.Header
	}

	// OpenParamsGetter resolves where to connect. It is called before every dial so
	// that tokens or endpoints can rotate between reconnections.
	OpenParamsGetter func(ctx context.Context) (OpenParams, error)

	// BackoffCalculator returns how long to wait before the given reconnection attempt.
	BackoffCalculator func(attempts int) time.Duration

	FeedOption func(*WsFeed)

	// WsFeed republishes the frames of a websocket connection as local events on an
	// Emitter: data and binary frames as FeedMessage, control frames as FeedPing,
	// FeedPong and FeedClose, plus FeedConnect and FeedReconnect lifecycle events.
	// Every event carries a single Message, except FeedConnect and FeedReconnect which
	// carry none.
	WsFeed struct {
		logger  Logger
		dialer  *websocket.Dialer
		params  OpenParamsGetter
		events  *Emitter[FeedEvent, Message]
		backoff BackoffCalculator

		mu       sync.Mutex
		session  *feedSession
		opening  bool
		closeErr error

		closeC    CloseChan
		closeOnce sync.Once
	}

	// feedSession is the state of one dialled connection.
	feedSession struct {
		conn     *websocket.Conn
		send     chan Message
		done     chan struct{}
		err      error
		closeMsg Message
	}
)

// WithFeedBackoff replaces the reconnection delay used by Run.
func WithFeedBackoff(b BackoffCalculator) FeedOption {
	return func(f *WsFeed) {
		if b != nil {
			f.backoff = b
		}
	}
}

// NewWsFeed creates a feed that publishes on events. A nil dialer uses
// websocket.DefaultDialer.
func NewWsFeed(
	logger Logger,
	dialer *websocket.Dialer,
	params OpenParamsGetter,
	events *Emitter[FeedEvent, Message],
	opts ...FeedOption,
) *WsFeed {
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	if logger == nil {
		logger = NopLogger()
	}

	f := &WsFeed{
		logger:  logger.WithField("feed", "websocket"),
		dialer:  dialer,
		params:  params,
		events:  events,
		backoff: ExponentialBackoffSeconds,
		closeC:  make(CloseChan),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// StaticOpenParams returns a getter that always dials rawURL.
func StaticOpenParams(rawURL string, header http.Header) (OpenParamsGetter, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid feed url %q", rawURL)
	}
	p := OpenParams{URL: *u, Header: header}
	return func(context.Context) (OpenParams, error) { return p, nil }, nil
}

// Open dials the server and starts relaying frames. It returns once the connection
// is established; the connection then lives until the peer closes it, ctx is done
// or Close is called.
func (f *WsFeed) Open(ctx context.Context) error {
	select {
	case <-f.closeC:
		return ErrTerminated
	default:
	}

	if err := f.claim(); err != nil {
		return err
	}

	conn, err := f.dial(ctx)
	if err != nil {
		f.release(nil)
		f.logger.Errorf("connection err: %s", err)
		return err
	}

	s := &feedSession{
		conn: conn,
		send: make(chan Message, feedSendBuffer),
		done: make(chan struct{}),
	}

	conn.SetPingHandler(func(appData string) error {
		f.events.Emit(FeedPing, NewPingMessage([]byte(appData)))

		err := conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(feedWriteWait))
		if err == websocket.ErrCloseSent {
			return nil
		}
		if e, ok := err.(net.Error); ok && e.Timeout() {
			return nil
		}
		return err
	})

	conn.SetPongHandler(func(appData string) error {
		f.events.Emit(FeedPong, NewPongMessage([]byte(appData)))
		return nil
	})

	f.release(s)

	go f.serve(ctx, s)

	f.logger.Debugln("connection opened")
	f.events.Emit(FeedConnect)

	return nil
}

// Run keeps the feed connected until ctx is done or Close is called, re-dialling
// after every lost connection and emitting FeedReconnect once a re-dial succeeds.
// Run returns nil after Close and ctx.Err() when ctx ends.
func (f *WsFeed) Run(ctx context.Context) error {
	var (
		connected bool
		attempts  int
	)

	for {
		if s := f.current(); s != nil && !s.ended() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-f.closeC:
				return nil
			case <-s.done:
				f.logger.Infof("connection ended due to %s, reconnecting", s.err)
			}
			continue
		}

		if err := f.Open(ctx); err != nil {
			if errors.Is(err, ErrTerminated) {
				return nil
			}
			if errors.Is(err, ErrFeedOpen) {
				// another Open is dialling
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-f.closeC:
					return nil
				case <-time.After(feedOpenPoll):
				}
				continue
			}

			attempts++
			ttw := f.backoff(attempts)
			f.logger.Infof("cannot connect after %s, waiting %s", err, ttw)

			timer := time.NewTimer(ttw)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-f.closeC:
				timer.Stop()
				return nil
			case <-timer.C:
			}
			continue
		}

		attempts = 0
		if connected {
			f.events.Emit(FeedReconnect)
		}
		connected = true
	}
}

// Send queues m for writing on the current connection.
func (f *WsFeed) Send(m Message) error {
	select {
	case <-f.closeC:
		return ErrConnectionClosed
	default:
	}

	s := f.current()
	if s == nil || s.ended() {
		return ErrConnectionClosed
	}

	select {
	case s.send <- m:
		return nil
	case <-s.done:
		return ErrConnectionClosed
	case <-f.closeC:
		return ErrConnectionClosed
	}
}

// Close terminates the feed. It is safe to call more than once.
func (f *WsFeed) Close() {
	f.closeOnce.Do(func() {
		close(f.closeC)
	})
}

// CloseChan returns a channel that is closed once Close has been called.
func (f *WsFeed) CloseChan() CloseChan {
	return f.closeC
}

// CloseErr explains why the last connection ended. It is nil while the first
// connection is alive.
func (f *WsFeed) CloseErr() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.closeErr
}

func (s *feedSession) ended() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// claim reserves the session slot so that concurrent Open calls dial at most once.
func (f *WsFeed) claim() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.opening || (f.session != nil && !f.session.ended()) {
		return ErrFeedOpen
	}
	f.opening = true
	return nil
}

// release frees the slot taken by claim, installing s when the dial succeeded.
func (f *WsFeed) release(s *feedSession) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if s != nil {
		f.session = s
	}
	f.opening = false
}

func (f *WsFeed) current() *feedSession {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.session
}

func (f *WsFeed) dial(ctx context.Context) (*websocket.Conn, error) {
	p, err := f.params(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "cannot get connection params")
	}

	conn, resp, err := f.dialer.DialContext(ctx, p.URL.String(), p.Header)
	if err != nil {
		return nil, dialError(resp, err)
	}

	return conn, nil
}

func dialError(resp *http.Response, err error) error {
	if resp != nil && resp.StatusCode == http.StatusTooManyRequests {
		var msg string
		if resp.Body != nil {
			if bts, readErr := io.ReadAll(resp.Body); readErr == nil {
				msg = string(bts)
			}
		}
		return errors.Wrap(ErrRateLimit, msg)
	}

	return errors.Wrap(ErrCannotConnect, err.Error())
}

// serve runs the read and write loops of s until either fails, then publishes
// FeedClose.
func (f *WsFeed) serve(ctx context.Context, s *feedSession) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return f.read(s) })
	g.Go(func() error { return f.write(gctx, s) })

	err := g.Wait()

	closeMsg := s.closeMsg
	if closeMsg == nil {
		code := websocket.CloseAbnormalClosure
		if errors.Is(err, ErrTerminated) {
			code = websocket.CloseNormalClosure
		}
		closeMsg = NewCloseMessage(code, []byte(err.Error()))
	}

	s.err = err
	f.mu.Lock()
	f.closeErr = err
	f.mu.Unlock()

	f.logger.Debugf("connection closed: %s", err)
	f.events.Emit(FeedClose, closeMsg)

	close(s.done)
}

func (f *WsFeed) read(s *feedSession) error {
	for {
		mt, data, err := s.conn.ReadMessage()
		if err != nil {
			var ce *websocket.CloseError
			if errors.As(err, &ce) {
				s.closeMsg = NewCloseMessage(ce.Code, []byte(ce.Text))
				return errors.Wrapf(ErrConnectionClosed, "closed by peer with code %d", ce.Code)
			}
			return errors.Wrap(ErrConnectionClosed, "error occurred on websocket read: "+err.Error())
		}

		if mt == websocket.BinaryMessage {
			f.events.Emit(FeedMessage, NewBinaryMessage(data))
		} else {
			f.events.Emit(FeedMessage, NewDataMessage(data))
		}
	}
}

// write owns every data write on the connection. Closing the connection on exit
// unblocks read.
func (f *WsFeed) write(ctx context.Context, s *feedSession) error {
	defer s.conn.Close()

	for {
		select {
		case <-ctx.Done():
			return ErrTerminated
		case <-f.closeC:
			_ = s.conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(feedWriteWait),
			)
			return ErrTerminated
		case m := <-s.send:
			if err := writeMessage(s.conn, m); err != nil {
				return errors.Wrap(ErrConnectionClosed, err.Error())
			}
		}
	}
}

func writeMessage(conn *websocket.Conn, m Message) error {
	deadline := time.Now().Add(feedWriteWait)

	switch m.Type() {
	case PingMessage:
		return conn.WriteControl(websocket.PingMessage, m.Data(), deadline)
	case PongMessage:
		return conn.WriteControl(websocket.PongMessage, m.Data(), deadline)
	case CloseMessage:
		code, _ := CloseCode(m)
		return conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, string(m.Data())), deadline)
	case BinaryMessage:
		_ = conn.SetWriteDeadline(deadline)
		return conn.WriteMessage(websocket.BinaryMessage, m.Data())
	default:
		_ = conn.SetWriteDeadline(deadline)
		return conn.WriteMessage(websocket.TextMessage, m.Data())
	}
}

func ExponentialBackoff(attempts int) float64 {
	return (math.Pow(2.0, float64(attempts)) - 1) / 2
}

// ExponentialBackoffSeconds turns ExponentialBackoff into a delay capped at 30s.
func ExponentialBackoffSeconds(attempts int) time.Duration {
	d := time.Duration(ExponentialBackoff(attempts) * float64(time.Second))
	if d > maxBackoff || d < 0 {
		return maxBackoff
	}
	return d
}
