// Package logweave is the Go client SDK for the logweave ingestion API.
//
// A Client ships log record batches over HTTP, optionally signing and
// compressing them the way the server's transport codec expects, and
// exposes the query surface: log search, similarity search, and temporal
// context.
//
//	client, err := logweave.New(
//		logweave.WithEndpoint("https://logs.example.com"),
//		logweave.WithSigningKey("collector-7", privateKey),
//		logweave.WithCompression(true),
//	)
//	if err != nil { ... }
//	report, err := client.Ship(ctx, records)
package logweave
