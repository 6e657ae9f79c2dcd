// Package sse streams pipeline events to HTTP clients as Server-Sent
// Events.
//
// A Hub owns the connected clients. Sink is a pipeline.Sink that turns
// every task event into a frame for the clients watching that task and
// for the clients watching all tasks.
//
//	hub := sse.NewHub(log)
//	go hub.Run()
//	orchestrator.Bus().AddSink("sse", sse.NewSink(hub))
//	hub.Serve(w, r, sse.NewClient(sse.TaskClientID(taskID, connID), taskID))
package sse
