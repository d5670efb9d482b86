// Package patentscope embeds the patent search pipeline in a Go program without running the HTTP API.
//
// A request flows through four steps, each available on its own:
//
//	client, _ := patentscope.New(ctx,
//	    patentscope.WithFileStore("./data"),
//	    patentscope.WithOpenAI(os.Getenv("OPENAI_API_KEY"), ""),
//	    patentscope.WithBigQuery("my-project", serviceAccountJSON),
//	)
//	defer client.Close()
//
//	res, _ := client.Search(ctx, "solid-state battery patents from Toyota since 2020")
//	_, _ = client.Index(ctx, res.Patents)
//	matches, _ := client.Similar(ctx, "sulfide electrolyte", 5)
//	summary, _ := client.Summarize(ctx, matches[0].Abstract)
package patentscope
