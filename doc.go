// Package teneo is a Go client SDK for the Teneo coordinator: a
// persistent, authenticated, bidirectional websocket connection with
// wallet-based challenge–response authentication, automatic reconnection,
// request/response correlation, and optional webhook mirroring of session
// events.
//
// A Client is built from a single Config and exposes the whole surface:
//
//	cfg := teneo.Config{URL: "wss://coordinator.example.com/ws"}
//	client, err := teneo.NewClient(cfg, teneo.WithSecretBytes(key))
//	if err != nil {
//		return err
//	}
//	defer client.Destroy()
//
//	client.On(events.AgentResponse, func(payload any) { ... })
//
//	if err := client.Connect(ctx); err != nil {
//		return err
//	}
//	resp, err := client.SendMessage(ctx, "ping",
//		teneo.WaitForResponse(), teneo.WithTimeout(5*time.Second))
//
// Every failure crossing the public surface is an *Error carrying a Code,
// a recoverable flag, and the underlying cause.
package teneo
