// Package taleforge embeds the Tale Forge usage gate in a Go process.
//
// The client talks to the same account store as the HTTP service, so an
// in-process caller and the API share one set of counters.
//
//	client, _ := taleforge.New(ctx, taleforge.WithRedis("localhost:6379", ""))
//	defer client.Close()
//
//	res, _ := client.UseOneChapter(ctx, accountID)
//	if !res.Success {
//	    // show res.Error, retry after res.ResetAt
//	}
//
//	charge, _ := client.Charge(ctx, accountID, taleforge.OperationAudio, text)
package taleforge
