/*
 * SPDX-FileCopyrightText: © Lodestar Finance <dev@lodestar.finance>
 * SPDX-License-Identifier: Apache-2.0
 */

package upstream

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/golang/glog"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/vektah/gqlparser/v2/gqlerror"
)

// Message types of the graphql-ws protocol spoken by subgraph endpoints.
const (
	msgConnectionInit      = "connection_init"
	msgConnectionAck       = "connection_ack"
	msgConnectionKeepAlive = "ka"
	msgConnectionError     = "connection_error"
	msgConnectionTerminate = "connection_terminate"
	msgStart               = "start"
	msgData                = "data"
	msgError               = "error"
	msgComplete            = "complete"
	msgStop                = "stop"
)

type wsMessage struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Subscribe opens a dedicated websocket to the upstream endpoint, starts
// req as a graphql-ws subscription and streams every execution result on
// the returned channel.  The channel closes when upstream completes the
// subscription or ctx is cancelled; cancellation sends a stop frame before
// closing the socket.
func (c *HTTPClient) Subscribe(ctx context.Context, req *Request) (<-chan *Result, error) {
	dialer := websocket.Dialer{Subprotocols: []string{"graphql-ws"}}

	header := http.Header{}
	c.copyHeaders(header, req.Header)

	conn, resp, err := dialer.DialContext(ctx, c.wsEndpoint, header)
	if err != nil {
		if resp != nil {
			return nil, errors.Wrapf(ErrUnavailable, "websocket dial %s: %v (status %s)",
				c.wsEndpoint, err, resp.Status)
		}
		return nil, errors.Wrapf(ErrUnavailable, "websocket dial %s: %v", c.wsEndpoint, err)
	}

	if err := handshake(conn); err != nil {
		conn.Close()
		return nil, err
	}

	payload, err := json.Marshal(req)
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "marshalling subscription payload")
	}
	if err := conn.WriteJSON(wsMessage{ID: "1", Type: msgStart, Payload: payload}); err != nil {
		conn.Close()
		return nil, errors.Wrapf(ErrUnavailable, "starting subscription: %v", err)
	}

	results := make(chan *Result)
	go readLoop(ctx, conn, results)
	return results, nil
}

// handshake sends connection_init and waits for the ack, skipping over any
// keepalive frames the server interleaves.
func handshake(conn *websocket.Conn) error {
	if err := conn.WriteJSON(wsMessage{Type: msgConnectionInit}); err != nil {
		return errors.Wrapf(ErrUnavailable, "websocket init: %v", err)
	}

	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return errors.Wrapf(ErrUnavailable, "waiting for connection ack: %v", err)
		}
		switch msg.Type {
		case msgConnectionAck:
			return nil
		case msgConnectionKeepAlive:
			continue
		case msgConnectionError:
			return errors.Wrapf(ErrUnavailable, "upstream refused connection: %s", msg.Payload)
		default:
			return errors.Wrapf(ErrUnavailable,
				"unexpected %q frame while waiting for connection ack", msg.Type)
		}
	}
}

func readLoop(ctx context.Context, conn *websocket.Conn, results chan<- *Result) {
	defer close(results)
	defer conn.Close()

	// Unblocks the blocked ReadJSON when the subscriber goes away.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			if err := conn.WriteJSON(wsMessage{ID: "1", Type: msgStop}); err == nil {
				_ = conn.WriteJSON(wsMessage{Type: msgConnectionTerminate})
			}
			conn.Close()
		case <-done:
		}
	}()

	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() == nil {
				glog.Warningf("upstream subscription closed: %v", err)
			}
			return
		}

		switch msg.Type {
		case msgConnectionKeepAlive:
			continue
		case msgData:
			var result Result
			if err := json.Unmarshal(msg.Payload, &result); err != nil {
				glog.Errorf("dropping undecodable subscription payload: %v", err)
				continue
			}
			select {
			case results <- &result:
			case <-ctx.Done():
				return
			}
		case msgError:
			result := &Result{Errors: errorPayload(msg.Payload)}
			select {
			case results <- result:
			case <-ctx.Done():
			}
			return
		case msgComplete:
			return
		default:
			glog.Warningf("ignoring unexpected %q frame on subscription", msg.Type)
		}
	}
}

// errorPayload decodes the payload of an error frame, which servers send
// either as a single GraphQL error or as a list.
func errorPayload(payload json.RawMessage) gqlerror.List {
	var list gqlerror.List
	if err := json.Unmarshal(payload, &list); err == nil && len(list) > 0 {
		return list
	}
	var one gqlerror.Error
	if err := json.Unmarshal(payload, &one); err == nil && one.Message != "" {
		return gqlerror.List{&one}
	}
	return gqlerror.List{gqlerror.Errorf("upstream subscription error: %s", payload)}
}
