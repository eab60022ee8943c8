package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"os"
	"time"

	"go.klb.dev/clipkeep/internal/clip"
	"go.klb.dev/clipkeep/internal/controller"
	"go.klb.dev/clipkeep/internal/history"
	"go.klb.dev/clipkeep/internal/hotkeys"
	"go.klb.dev/clipkeep/internal/keybind"
	"go.klb.dev/clipkeep/internal/message"
	"go.klb.dev/clipkeep/internal/wire"
)

const (
	requestTimeout = 5 * time.Second
	previewRunes   = 200
)

// server answers control socket requests by calling into the controller.
type server struct {
	ctrl *controller.Controller
	pid  int
}

func newServer(ctrl *controller.Controller) *server {
	return &server{ctrl: ctrl, pid: os.Getpid()}
}

func (s *server) serve(ctx context.Context, ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		go s.handleConn(ctx, conn)
	}
}

func (s *server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	wc := wire.New(conn)

	wc.SetReadDeadline(requestTimeout)
	req, err := wc.ReadMsg()
	if err != nil {
		slog.Debug("control: bad request", "err", err)
		_ = wc.WriteMsg(message.Errorf(message.CodeInvalid, "bad request: %v", err))
		return
	}
	wc.SetReadDeadline(0)

	resp := s.handle(ctx, req)
	slog.Debug("control: request handled", "type", req.Type, "response", resp.Type)
	if err := wc.WriteMsg(resp); err != nil {
		slog.Debug("control: write response", "err", err)
	}
}

func (s *server) handle(ctx context.Context, req *message.Message) *message.Message {
	ok := &message.Message{Type: message.TypeOK}

	switch req.Type {
	case message.TypeList:
		items, err := s.ctrl.List(ctx, req.Query, req.Limit)
		if err != nil {
			return errorResponse(err)
		}
		ok.Entries = make([]message.Entry, len(items))
		for i, it := range items {
			ok.Entries[i] = entryView(it.Index, it.Entry, false)
		}

	case message.TypeGet:
		e, err := s.ctrl.Get(ctx, req.Index)
		if err != nil {
			return errorResponse(err)
		}
		ok.Entries = []message.Entry{entryView(req.Index, e, true)}

	case message.TypeRestore:
		if err := s.ctrl.Restore(ctx, req.Index, req.Paste); err != nil {
			return errorResponse(err)
		}

	case message.TypePaste:
		if err := s.ctrl.PasteLast(ctx); err != nil {
			return errorResponse(err)
		}

	case message.TypeClear:
		if err := s.ctrl.Clear(ctx); err != nil {
			return errorResponse(err)
		}

	case message.TypeToggle:
		visible, err := s.ctrl.Toggle(ctx)
		if err != nil {
			return errorResponse(err)
		}
		ok.Visible = &visible

	case message.TypeReload:
		rep, err := s.ctrl.Reload(ctx)
		if err != nil && !errors.Is(err, hotkeys.ErrAllFailed) {
			return errorResponse(err)
		}
		ok.Hotkeys = reportView(rep)

	case message.TypeBindings:
		table, err := s.ctrl.Bindings(ctx)
		if err != nil {
			return errorResponse(err)
		}
		ok.Hotkeys = bindingsView(table)

	case message.TypeSetBinding:
		rep, err := s.ctrl.SetBinding(ctx, keybind.Edit{
			Action:  keybind.Action(req.Action),
			Combo:   req.Combo,
			Disable: req.Disable,
			Remove:  req.Remove,
		})
		if err != nil && !errors.Is(err, hotkeys.ErrAllFailed) {
			return errorResponse(err)
		}
		ok.Hotkeys = reportView(rep)

	case message.TypeStatus:
		st, err := s.ctrl.Status(ctx)
		if err != nil {
			return errorResponse(err)
		}
		ok.Status = s.statusView(st)

	default:
		return message.Errorf(message.CodeInvalid, "unknown request type %q", req.Type)
	}
	return ok
}

func errorResponse(err error) *message.Message {
	var (
		conflict *keybind.ConflictError
		combo    *keybind.InvalidComboError
		action   *keybind.InvalidActionError
	)
	code := ""
	switch {
	case errors.Is(err, history.ErrNotFound):
		code = message.CodeNotFound
	case errors.Is(err, controller.ErrEmptyHistory):
		code = message.CodeEmpty
	case errors.Is(err, controller.ErrStopped):
		code = message.CodeStopped
	case errors.As(err, &conflict), errors.As(err, &combo), errors.As(err, &action):
		code = message.CodeInvalid
	}
	return message.Errorf(code, "%v", err)
}

func entryView(index int, e history.Entry, full bool) message.Entry {
	v := message.Entry{
		Index:     index,
		ID:        e.ID,
		Kind:      string(e.Kind),
		Size:      e.Size(),
		CreatedAt: e.CreatedAt,
	}
	if e.Kind == clip.KindText {
		p := []rune(e.Text())
		if len(p) > previewRunes {
			p = p[:previewRunes]
		}
		v.Preview = string(p)
	}
	if full {
		it := message.NewItem(e.Kind.MIME(), e.Payload())
		v.Item = &it
	}
	return v
}

func reportView(rep hotkeys.Report) []message.Hotkey {
	out := make([]message.Hotkey, 0, len(rep.Registered)+len(rep.Failed))
	for _, a := range rep.Registered {
		out = append(out, message.Hotkey{Action: string(a), Enabled: true, State: hotkeys.Registered.String()})
	}
	for _, f := range rep.Failed {
		out = append(out, message.Hotkey{
			Action:  string(f.Action),
			Combo:   f.Combo,
			Enabled: true,
			State:   hotkeys.Unregistered.String(),
			Error:   f.Err.Error(),
		})
	}
	return out
}

func bindingsView(t keybind.Table) []message.Hotkey {
	out := make([]message.Hotkey, 0, len(t))
	for _, a := range t.Actions() {
		b := t[a]
		out = append(out, message.Hotkey{Action: string(a), Combo: b.Combo, Enabled: b.Enabled})
	}
	return out
}

func (s *server) statusView(st controller.Status) *message.Status {
	v := &message.Status{
		Version:         Version,
		PID:             s.pid,
		Entries:         st.Entries,
		MaxItems:        st.MaxItems,
		WatchIntervalMS: st.WatchInterval.Milliseconds(),
		PasteKeystroke:  st.PasteKeystroke,
		Visible:         st.Visible,
		Backend:         st.Backend,
		HistoryPath:     st.HistoryPath,
		BindingsPath:    st.BindingsPath,
		StartedAt:       st.StartedAt,
		LastCapture:     st.LastCapture,
	}
	for _, h := range st.Hotkeys {
		v.Hotkeys = append(v.Hotkeys, message.Hotkey{
			Action:  string(h.Action),
			Combo:   h.Combo,
			Enabled: h.Enabled,
			State:   h.State.String(),
		})
	}
	return v
}
