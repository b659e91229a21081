// Package ragd provides a Go client for a ragd server.
//
// Questions go over the TCP question protocol. Document management and the
// processing pipeline go over the admin HTTP API, which needs WithAdminURL.
//
//	client, _ := ragd.New("localhost:9999",
//	    ragd.WithAdminURL("http://localhost:8080"),
//	    ragd.WithToken(os.Getenv("RAGD_API_KEY")),
//	)
//	_, _ = client.UploadFile(ctx, "handbook.pdf", false)
//	_, _ = client.Process(ctx)
//	answer, _ := client.Ask(ctx, "What is the refund policy?")
package ragd
