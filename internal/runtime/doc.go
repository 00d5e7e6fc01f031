/*
Package runtime is the playback state machine of a reading session.

A Session walks a story graph for one reader. Scene nodes present their text
units one advance at a time; choice nodes pause until Choose is called;
start, branch and variable_modifier nodes are resolved silently; ending nodes
terminate the unit. When a continuous (single ending) story reaches the end
of a unit that is not its last, the session checks the reader's entitlement,
waits for the background prefetch of the next unit and re-enters at that
unit's start node with the same variable store.

All external advance sources (click, key press, autoplay) go through
RequestAdvance. Presentation is reported through domain.PlaybackHooks, which
are invoked outside the session lock.

States:

	presenting_content -> awaiting_choice -> presenting_content ...
	                   -> loading -> presenting_content (next unit)
	                   -> ended | stalled | access_denied | closed
*/
package runtime
