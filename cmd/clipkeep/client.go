package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"go.klb.dev/clipkeep/internal/ipc"
	"go.klb.dev/clipkeep/internal/message"
	"go.klb.dev/clipkeep/internal/wire"
)

const callTimeout = 10 * time.Second

// call sends req to the running daemon and returns its OK response. An ERROR
// response comes back as a *message.RemoteError.
func call(req *message.Message) (*message.Message, error) {
	conn, err := ipc.Dial()
	if err != nil {
		return nil, err
	}
	wc := wire.New(conn)
	defer wc.Close()

	resp, err := wc.Call(req, callTimeout)
	if err != nil {
		return nil, err
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	return resp, nil
}

func printJSON(w io.Writer, v any) error {
	enc, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(enc))
	return err
}
