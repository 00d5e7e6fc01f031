/*
Package runner implements the terminal reader loop for Arbor stories.

It is the bridge between a playback session and a human (or a pipe).
Session events are turned into Frames and handed to a pluggable IOHandler;
lines read back from the handler become advance requests and choices.

# Key Components

  - Runner: drives a session until it reaches a terminal state.
  - IOHandler: decouples presentation (text, JSON lines) from the loop.
  - TextHandler: interactive terminal output with an optional renderer.
  - JSONHandler: one JSON object per frame for headless hosts.

# Usage

	r := runner.NewRunner(runner.WithInputHandler(runner.NewTextHandler(os.Stdin, os.Stdout)))
	s, _ := engine.Read(ctx, "reader-1", "my-story", arbor.WithReadHooks(r.Hooks()))
	if err := r.Run(ctx, s); err != nil {
		log.Fatal(err)
	}

Input: an empty line (or "n") advances, a number picks the matching choice,
"h" prints the reading history and "q" leaves the loop.
*/
package runner
