/*
Package arbor is an engine for authoring and reading branching visual-novel stories.

A story unit (an episode) is a directed graph of narrative nodes: start,
scene, choice, conditional branch, variable modifier, ending and comment.
Authors edit the graph through an Editor that keeps it consistent and
autosaves it; readers walk it through a Session that paces text, pauses on
choices, evaluates conditions against story variables and chains episodes.

# Key Features

  - Consistent authoring: slot rules, a single start node and guided placement are enforced on every edit.
  - Deterministic playback: the same graph, variables and choices always produce the same read-through.
  - Durable progress: sessions persist a reading pointer that can be resumed against any storage adapter.
  - Pluggable storage: memory, files, Loam, Redis and SQLite adapters share one contract.

# Usage

The default repository is a Loam document directory. Any ports.ContentRepository
can be injected instead.

	package main

	import (
		"context"
		"log"
		"os"

		"github.com/aretw0/arbor"
		"github.com/aretw0/arbor/pkg/runner"
	)

	func main() {
		eng, err := arbor.New("./my-library")
		if err != nil {
			log.Fatal(err)
		}

		ctx := context.Background()
		r := runner.NewRunner(runner.WithInputHandler(runner.NewTextHandler(os.Stdin, os.Stdout)))
		s, err := eng.Read(ctx, "reader-1", "my-story", arbor.WithReadHooks(r.Hooks()))
		if err != nil {
			log.Fatal(err)
		}
		defer s.Close()

		if err := r.Run(ctx, s); err != nil {
			log.Fatal(err)
		}
	}
*/
package arbor
