// Package language maps language ids onto compile and run targets. The
// source file and the compiled artifact live at fixed names inside the
// working directory, so a run invocation finds whatever the preceding
// compile invocation produced there.
package language

import "fmt"

// Target is one program image to execute inside the sandbox. Argv and envp
// are fully specified ahead of time; nothing is ever derived from the
// untrusted program's input.
type Target struct {
	Pathname string   `yaml:"pathname"`
	Argv     []string `yaml:"argv"`
	Envp     []string `yaml:"envp"`
}

// Language describes how to compile and run one supported language.
type Language struct {
	ID         int    `yaml:"id"`
	Name       string `yaml:"name"`
	SourceFile string `yaml:"source_file"`
	BinaryFile string `yaml:"binary_file"`
	Compile    Target `yaml:"compile"`
	Run        Target `yaml:"run"`
}

var defaultEnv = []string{
	"PATH=/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin",
}

var builtins = map[int]Language{
	0: {
		ID:         0,
		Name:       "c",
		SourceFile: "main.c",
		BinaryFile: "main",
		Compile: Target{
			Pathname: "/usr/bin/gcc",
			Argv:     []string{"main.c", "-o", "main", "-O2", "-lpthread"},
			Envp:     defaultEnv,
		},
		Run: Target{
			Pathname: "./main",
			Envp:     defaultEnv,
		},
	},
}

// Lookup returns the profile registered for a language id.
func Lookup(id int) (Language, error) {
	lang, ok := builtins[id]
	if !ok {
		return Language{}, fmt.Errorf("unknown language id %d", id)
	}
	return lang, nil
}
