// package tasks implements the demo evaluation executor behind the progress server.
//
// The core abstraction is DemoRunner, which walks a run through its questions against a
// [ProgressSink] (the server's tracker) so connected clients receive live progress.
// Operations emit progress updates via channels for non-blocking status reporting to the CLI.
package tasks
