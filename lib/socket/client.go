// Copyright 2026 The Retroflow Authors
// SPDX-License-Identifier: Apache-2.0

package socket

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/retroflow-foundation/retroflow/lib/address"
	"github.com/retroflow-foundation/retroflow/lib/codec"
	"github.com/retroflow-foundation/retroflow/lib/identity"
)

// dialTimeout is the maximum time to wait for a connection to the
// service socket. This is separate from the server's read/write
// timeouts — it covers only the connect phase.
const dialTimeout = 5 * time.Second

// responseReadTimeout is how long the client waits for the server to
// send a response after writing the request. Matched to the server's
// readTimeout + writeTimeout to account for handler execution time.
const responseReadTimeout = 45 * time.Second

// maxResponseSize is the maximum size of a single CBOR response.
// Matches the server's maxRequestSize for symmetry.
const maxResponseSize = 1024 * 1024

// CallError is returned by Call when the server responds with
// ok=false. It wraps the server's error message and the action that
// failed.
type CallError struct {
	Action  string
	Message string
}

func (e *CallError) Error() string {
	return fmt.Sprintf("call error on %q: %s", e.Action, e.Message)
}

// Client sends signed CBOR requests to a workflow service socket.
// Each Call opens a new connection (matching the server's
// one-request-per-connection model), sends the request, reads the
// response, and closes the connection.
//
// Every request is signed with the client's keypair. A client
// configured with Delegate carries the principal and delegation token
// on each request, acting for the principal.
type Client struct {
	socketPath string
	keypair    identity.Keypair

	principal identity.PublicKey
	token     address.Address
}

// NewClient creates a client signing requests with keypair.
func NewClient(socketPath string, keypair identity.Keypair) *Client {
	return &Client{socketPath: socketPath, keypair: keypair}
}

// Delegate returns a client acting for principal under the delegation
// token at tokenAddr. The returned client shares the socket path and
// signing key; requests name the principal and token in their
// envelopes.
func (c *Client) Delegate(principal identity.PublicKey, tokenAddr address.Address) *Client {
	clone := *c
	clone.principal = principal
	clone.token = tokenAddr
	return &clone
}

// Call sends a signed request for action and decodes the response.
//
// params may be any CBOR-encodable value, or nil for actions without
// parameters. On success, if result is non-nil and the response
// contains data, the data is decoded into result. On an ok=false
// response, returns a *CallError with the server's message;
// connection and encoding failures are returned as plain errors.
func (c *Client) Call(ctx context.Context, action string, params, result any) error {
	request, err := c.buildRequest(action, params)
	if err != nil {
		return err
	}

	response, err := c.send(ctx, request)
	if err != nil {
		return fmt.Errorf("calling %q on %s: %w", action, c.socketPath, err)
	}
	return c.decodeResponse(action, response, result)
}

func (c *Client) decodeResponse(action string, response *Response, result any) error {
	if !response.OK {
		return &CallError{Action: action, Message: response.Error}
	}
	if result != nil && len(response.Data) > 0 {
		if err := codec.Unmarshal(response.Data, result); err != nil {
			return fmt.Errorf("decoding response data for %q: %w", action, err)
		}
	}
	return nil
}

// CallCoSigned is Call with a second signature from coSigner. Actions
// requiring two-party consent, such as delegation token creation,
// reject requests whose co-signer is missing or does not match the
// consenting party.
func (c *Client) CallCoSigned(ctx context.Context, action string, params any, coSigner identity.Keypair, result any) error {
	request, err := c.buildRequest(action, params)
	if err != nil {
		return err
	}
	request.CoSigner = coSigner.Public

	// The co-signer identity is part of the signed payload, so both
	// signatures are computed after it is set.
	payload, err := request.SigningBytes()
	if err != nil {
		return err
	}
	request.Signature = c.keypair.Sign(payload)
	request.CoSignature = coSigner.Sign(payload)

	response, err := c.send(ctx, request)
	if err != nil {
		return fmt.Errorf("calling %q on %s: %w", action, c.socketPath, err)
	}
	return c.decodeResponse(action, response, result)
}

func (c *Client) buildRequest(action string, params any) (*Request, error) {
	request := &Request{
		Action:    action,
		Caller:    c.keypair.Public,
		Principal: c.principal,
		Token:     c.token,
	}
	if params != nil {
		encoded, err := codec.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("encoding params for %q: %w", action, err)
		}
		request.Params = encoded
	}

	payload, err := request.SigningBytes()
	if err != nil {
		return nil, err
	}
	request.Signature = c.keypair.Sign(payload)
	return request, nil
}

func (c *Client) send(ctx context.Context, request *Request) (*Response, error) {
	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	} else {
		conn.SetDeadline(time.Now().Add(responseReadTimeout))
	}

	if err := codec.NewEncoder(conn).Encode(request); err != nil {
		return nil, fmt.Errorf("writing request: %w", err)
	}

	var response Response
	if err := codec.NewDecoder(io.LimitReader(conn, maxResponseSize)).Decode(&response); err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	return &response, nil
}
