package provider

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
)

//go:embed fixtures/*.yaml
var fixturesFS embed.FS

// DemoBundle returns the built-in fixture bundle. The fixtures are compiled
// in, so a parse failure is a build defect.
func DemoBundle() *Bundle {
	entries, err := fs.Glob(fixturesFS, "fixtures/*.yaml")
	if err != nil {
		panic(fmt.Sprintf("list fixtures: %v", err))
	}
	sort.Strings(entries)

	b := NewBundle("demo")
	for _, name := range entries {
		data, err := fixturesFS.ReadFile(name)
		if err != nil {
			panic(fmt.Sprintf("read fixture %s: %v", name, err))
		}
		parsed, err := ParseBundle(data)
		if err != nil {
			panic(fmt.Sprintf("parse fixture %s: %v", name, err))
		}
		for _, t := range parsed.tokens {
			b.add(t)
		}
	}
	return b
}
