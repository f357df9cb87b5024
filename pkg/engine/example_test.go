package engine_test

import (
	"context"
	"fmt"
	"sort"

	"github.com/openfroyo/singletons/pkg/engine"
)

type staticBackend map[string]interface{}

func (b staticBackend) Lookup(_ context.Context, key string) (interface{}, bool, error) {
	v, ok := b[key]
	return v, ok, nil
}

type printCatalog struct {
	declared map[string]bool
	classes  map[string]bool
}

func (c *printCatalog) ResourceExists(kind, title string) bool {
	return c.declared[engine.NewIdentifier(kind, title).String()]
}

func (c *printCatalog) Declare(_ context.Context, kind, title string, params map[string]interface{}) error {
	id := engine.NewIdentifier(kind, title)
	c.declared[id.String()] = true

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Printf("%s", id)
	for _, k := range keys {
		fmt.Printf(" %s=%v", k, params[k])
	}
	fmt.Println()
	return nil
}

func (c *printCatalog) ClassIncluded(name string) bool { return c.classes[name] }

func (c *printCatalog) IncludeClass(_ context.Context, name string) error {
	c.classes[name] = true
	fmt.Printf("include %s\n", name)
	return nil
}

// Example_singletons shows both entry points sharing one compilation pass.
func Example_singletons() {
	backend := staticBackend{
		"singleton_package_vim": map[string]interface{}{
			"parameters":                 map[string]interface{}{"ensure": "latest"},
			"include_singleton_packages": []interface{}{"vim-puppet"},
		},
		"singleton_resource_user": map[string]interface{}{
			"parameters":      map[string]interface{}{"shell": "/bin/bash"},
			"include_classes": []interface{}{"accounts"},
		},
	}
	catalog := &printCatalog{declared: map[string]bool{}, classes: map[string]bool{}}

	eng, err := engine.NewEngine(engine.Session{
		Catalog:  catalog,
		Resolver: engine.NewResolver(backend),
		Guard:    engine.NewGuard(),
	})
	if err != nil {
		fmt.Println(err)
		return
	}

	ctx := context.Background()
	if _, err := eng.DeclarePackages(ctx, "vim", "vim"); err != nil {
		fmt.Println(err)
		return
	}
	result, err := eng.DeclareResources(ctx, "User['fu']", 42)
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(len(result.Errors()), "item error")

	// Output:
	// include singleton
	// Package['singleton_package_vim'] ensure=latest name=vim
	// Package['singleton_package_vim-puppet'] ensure=present name=vim-puppet
	// User['fu'] name=fu shell=/bin/bash
	// include accounts
	// 1 item error
}
