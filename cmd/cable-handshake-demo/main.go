// Command cable-handshake-demo drives a complete handshake between an
// initiator and a responder over an in-memory net.Pipe connection, then sends
// one signed post through the resulting transport, to demonstrate that
// the codec and the handshake interoperate end to end.
package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"

	"github.com/cabled/cable/handshake"
	"github.com/cabled/cable/internal/zeroize"
	"github.com/cabled/cable/post"
	"github.com/cabled/cable/version"
)

// Request configures one demo run. An empty PSKHex/Channel/Text falls
// back to a fixed default so the CLI can be run with no input at all.
type Request struct {
	PSKHex  string `json:"psk_hex,omitempty"`
	Channel string `json:"channel,omitempty"`
	Text    string `json:"text,omitempty"`
}

// Response reports what the demo run produced.
type Response struct {
	Ok                   bool   `json:"ok"`
	Err                  string `json:"err,omitempty"`
	ClientVersionBytes   int    `json:"client_version_bytes,omitempty"`
	ServerVersionBytes   int    `json:"server_version_bytes,omitempty"`
	EphemeralBytes       int    `json:"ephemeral_bytes,omitempty"`
	EphemeralStaticBytes int    `json:"ephemeral_static_bytes,omitempty"`
	StaticBytes          int    `json:"static_bytes,omitempty"`
	PostHashHex          string `json:"post_hash_hex,omitempty"`
	PlaintextRecovered   string `json:"plaintext_recovered,omitempty"`
}

func writeResp(w io.Writer, resp Response) {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(resp)
}

func main() {
	var req Request
	if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil && err != io.EOF {
		writeResp(os.Stdout, Response{Ok: false, Err: fmt.Sprintf("bad request: %v", err)})
		os.Exit(1)
	}
	if req.Channel == "" {
		req.Channel = "default"
	}
	if req.Text == "" {
		req.Text = "An impeccably polite pangolin"
	}

	var psk [32]byte
	if req.PSKHex != "" {
		b, err := hex.DecodeString(req.PSKHex)
		if err != nil || len(b) != 32 {
			writeResp(os.Stdout, Response{Ok: false, Err: "bad psk_hex: want 32 bytes hex"})
			os.Exit(1)
		}
		copy(psk[:], b)
	} else {
		psk[0] = 0x01
	}

	resp, err := runDemo(psk, req.Channel, req.Text)
	if err != nil {
		writeResp(os.Stdout, Response{Ok: false, Err: err.Error()})
		os.Exit(1)
	}
	writeResp(os.Stdout, resp)
}

func runDemo(psk [32]byte, channel, text string) (Response, error) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	clientKey, err := randomStatic()
	if err != nil {
		return Response{}, err
	}
	serverKey, err := randomStatic()
	if err != nil {
		return Response{}, err
	}
	// clientKey, serverKey and psk are this function's own copies of secret
	// material; once the Configs below are built, nothing here needs them
	// again, so they are wiped on return rather than left lingering on the
	// stack.
	defer zeroize.Bytes(clientKey[:])
	defer zeroize.Bytes(serverKey[:])
	defer zeroize.Bytes(psk[:])

	ver := version.Version{Major: 1, Minor: 0}
	clientCfg := handshake.Config{LocalVersion: ver, PSK: psk, PrivateKey: clientKey}
	serverCfg := handshake.Config{LocalVersion: ver, PSK: psk, PrivateKey: serverKey}

	type result struct {
		transport handshake.Complete
		resp      Response
		err       error
	}
	clientDone := make(chan result, 1)
	serverDone := make(chan result, 1)

	go func() {
		transport, resp, err := runInitiatorSide(clientConn, clientCfg)
		clientDone <- result{transport, resp, err}
	}()
	go func() {
		transport, err := runResponderSide(serverConn, serverCfg)
		serverDone <- result{transport: transport, err: err}
	}()

	cr := <-clientDone
	sr := <-serverDone
	if cr.err != nil {
		return Response{}, cr.err
	}
	if sr.err != nil {
		return Response{}, sr.err
	}

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return Response{}, err
	}
	var pk [32]byte
	copy(pk[:], pub)
	p := post.NewText(pk, nil, 1, channel, text)
	if err := post.Sign(&p, priv); err != nil {
		return Response{}, err
	}
	postBytes, err := post.ToBytes(&p)
	if err != nil {
		return Response{}, err
	}
	postHash, err := post.Hash(&p)
	if err != nil {
		return Response{}, err
	}

	ciphertext, err := cr.transport.Encrypt(nil, postBytes)
	if err != nil {
		return Response{}, err
	}
	plaintext, err := sr.transport.Decrypt(nil, ciphertext)
	if err != nil {
		return Response{}, err
	}
	if !post.Verify(plaintext) {
		return Response{}, fmt.Errorf("demo: roundtripped post failed signature verification")
	}
	_, decoded, err := post.FromBytes(plaintext)
	if err != nil {
		return Response{}, err
	}
	if decoded.Body.Text == nil {
		return Response{}, fmt.Errorf("demo: roundtripped post lost its text body")
	}

	resp := cr.resp
	resp.Ok = true
	resp.PostHashHex = hex.EncodeToString(postHash[:])
	resp.PlaintextRecovered = decoded.Body.Text.Text
	return resp, nil
}

func runInitiatorSide(conn net.Conn, cfg handshake.Config) (handshake.Complete, Response, error) {
	var resp Response
	buf := make([]byte, handshake.MaxHandshakeMessageLen)

	step := handshake.NewInitiator(cfg)
	n, recvVer, err := step.Write(buf)
	if err != nil {
		return handshake.Complete{}, resp, err
	}
	resp.ClientVersionBytes = n
	if err := writeFrame(conn, buf[:n]); err != nil {
		return handshake.Complete{}, resp, err
	}

	in, err := readRaw(conn)
	if err != nil {
		return handshake.Complete{}, resp, err
	}
	buildNoise, err := recvVer.Read(in)
	if err != nil {
		return handshake.Complete{}, resp, err
	}
	resp.ServerVersionBytes = len(in)

	sendEph, err := buildNoise.Build()
	if err != nil {
		return handshake.Complete{}, resp, err
	}
	n, recvEphStatic, err := sendEph.Write(buf)
	if err != nil {
		return handshake.Complete{}, resp, err
	}
	resp.EphemeralBytes = n
	if err := writeFrame(conn, buf[:n]); err != nil {
		return handshake.Complete{}, resp, err
	}

	in, err = readRaw(conn)
	if err != nil {
		return handshake.Complete{}, resp, err
	}
	sendStatic, err := recvEphStatic.Read(in)
	if err != nil {
		return handshake.Complete{}, resp, err
	}
	resp.EphemeralStaticBytes = len(in)

	n, initTransport, err := sendStatic.Write(buf)
	if err != nil {
		return handshake.Complete{}, resp, err
	}
	resp.StaticBytes = n
	if err := writeFrame(conn, buf[:n]); err != nil {
		return handshake.Complete{}, resp, err
	}

	transport, err := initTransport.Complete()
	if err != nil {
		return handshake.Complete{}, resp, err
	}
	return transport, resp, nil
}

func runResponderSide(conn net.Conn, cfg handshake.Config) (handshake.Complete, error) {
	buf := make([]byte, handshake.MaxHandshakeMessageLen)

	step := handshake.NewResponder(cfg)
	in, err := readRaw(conn)
	if err != nil {
		return handshake.Complete{}, err
	}
	sendVer, err := step.Read(in)
	if err != nil {
		return handshake.Complete{}, err
	}

	n, buildNoise, err := sendVer.Write(buf)
	if err != nil {
		return handshake.Complete{}, err
	}
	if err := writeFrame(conn, buf[:n]); err != nil {
		return handshake.Complete{}, err
	}

	recvEph, err := buildNoise.Build()
	if err != nil {
		return handshake.Complete{}, err
	}
	in, err = readRaw(conn)
	if err != nil {
		return handshake.Complete{}, err
	}
	sendEphStatic, err := recvEph.Read(in)
	if err != nil {
		return handshake.Complete{}, err
	}

	n, recvStatic, err := sendEphStatic.Write(buf)
	if err != nil {
		return handshake.Complete{}, err
	}
	if err := writeFrame(conn, buf[:n]); err != nil {
		return handshake.Complete{}, err
	}

	in, err = readRaw(conn)
	if err != nil {
		return handshake.Complete{}, err
	}
	initTransport, err := recvStatic.Read(in)
	if err != nil {
		return handshake.Complete{}, err
	}

	return initTransport.Complete()
}

func randomStatic() ([32]byte, error) {
	var k [32]byte
	if _, err := rand.Read(k[:]); err != nil {
		return k, err
	}
	return k, nil
}

// writeFrame/readRaw frame each handshake message with a one-byte
// length prefix; every message this demo ever sends fits in 255 bytes.
func writeFrame(conn net.Conn, msg []byte) error {
	frame := make([]byte, 1+len(msg))
	frame[0] = byte(len(msg))
	copy(frame[1:], msg)
	_, err := conn.Write(frame)
	return err
}

func readRaw(conn net.Conn) ([]byte, error) {
	var lenByte [1]byte
	if _, err := io.ReadFull(conn, lenByte[:]); err != nil {
		return nil, err
	}
	buf := make([]byte, lenByte[0])
	if _, err := io.ReadFull(conn, buf); err != nil {
		return nil, err
	}
	return buf, nil
}
