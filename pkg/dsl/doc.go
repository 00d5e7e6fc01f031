/*
Package dsl provides a Go DSL for programmatically constructing Arbor story units.

It allows developers to define branching stories with a fluent builder
instead of authoring YAML or driving the editor. This is particularly useful
for unit tests, fixtures and generated content.

Example usage:

	b := dsl.New("ep1")
	b.Variable("courage", domain.DataTypeNumber, 0)

	b.Add("start").Start().Go("gate")

	b.Add("gate").Scene("ep1-gate").
		Narrate("The gate looms.").
		Say("guard", "Halt!").
		Go("ask")

	b.Add("ask").Choice("What now?").
		Option("Fight", "fight").
		OptionIf("Bribe", "gold > 0", "bribe")

	b.Add("fight").Ending(domain.EndingBad, "Fallen")

	bundle, err := b.Build()
	// bundle.Graph and bundle.Scenes can be loaded into any content repository.
*/
package dsl
