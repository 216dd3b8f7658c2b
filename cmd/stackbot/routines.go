package main

import (
	"fmt"
	"sort"
	"strings"
)

type RoutinesCmd struct {
	Steps bool `help:"Show each routine's steps." short:"s"`
}

func (r *RoutinesCmd) Run(c *Context) error {
	lib := c.cfg.Library()
	for _, name := range lib.Names() {
		def, _ := lib.Definition(name)
		marker := " "
		if name == c.cfg.Autonomous {
			marker = "*"
		}
		fmt.Printf("%s %-12s %d steps", marker, name, len(def.Steps))
		if def.Timeout > 0 {
			fmt.Printf(", timeout %v", def.Timeout)
		}
		fmt.Println()
		if !r.Steps {
			continue
		}
		for _, step := range def.Steps {
			mode := step.Mode
			if mode == "" {
				mode = "sequential"
			}
			fmt.Printf("      %-10s %s(%s)", mode, step.Task, formatParams(step.Params))
			if step.Timeout > 0 {
				fmt.Printf(" timeout %v", step.Timeout)
			}
			fmt.Println()
		}
	}
	return nil
}

func formatParams(params map[string]interface{}) string {
	var keys []string
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var parts []string
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, params[k]))
	}
	return strings.Join(parts, ", ")
}
