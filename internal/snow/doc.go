// Package snow is a small client for the ServiceNow REST Table API, scoped to
// what the knowledge-base exporter needs: paginated listing of the
// kb_knowledge table and single-article lookups.
//
// Usage:
//
//	client, err := snow.New("https://acme.service-now.com", user, password,
//		snow.WithTimeout(30*time.Second),
//		snow.WithLogger(logger),
//	)
//	snap, err := snow.NewFetcher(client, snow.FetchOptions{Domain: "acme"}).FetchSnapshot(ctx)
//	art, err := client.Knowledge().Get(ctx, "KB0010279")
package snow
