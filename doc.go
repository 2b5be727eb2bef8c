// Package rankdex provides an embedded Go client for the rankdex staged
// retrieval pipeline backed by Redis with the search module.
//
// The pipeline narrows a candidate set through configurable stages
// (recall, pre-rank, re-rank), each with its own cache, circuit breaker,
// and degradation policy. Backend failures never fail a query: degraded
// stages fall back and the outcome is reported in the result diagnostics.
//
//	client, _ := rankdex.New(ctx,
//	    rankdex.WithRedis("localhost:6379", ""),
//	    rankdex.WithEmbeddingAPI(apiKey, "text-embedding-3-small", 1536),
//	    rankdex.WithStages(rankdex.DefaultStages(1536)...),
//	)
//	defer client.Close()
//
//	ids, _ := client.IngestDocuments(ctx, docs)
//	result, _ := client.Retrieve(ctx, rankdex.Query{Text: "what is a funnel"})
package rankdex
