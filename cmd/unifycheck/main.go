// Copyright 2025 Buf Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// unifycheck loads a compiled grammar file (and, optionally, a quick-check
// path file), reports hierarchy statistics, and can run a unify or
// subsumption self-check against two dag dumps read from stdin.
package main

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	osuser "os/user"
	"strings"
	"syscall"

	"al.essio.dev/pkg/shellescape"
	"github.com/melbahja/goph"
	"golang.org/x/crypto/ssh"
	"golang.org/x/term"

	"github.com/vellum-lang/unify/gfile"
	"github.com/vellum-lang/unify/quickcheck"
	"github.com/vellum-lang/unify/unify"
)

var (
	grammarPath = flag.String("grammar", "", "path to a compiled grammar file (required)")
	qcPath      = flag.String("qc", "", "path to a quick-check path file (optional)")
	qcLimit     = flag.Int("qc-limit", 0, "quick-check vector length; required if -qc is set")
	remote      = flag.String("remote", "", "user@host to fetch -grammar and -qc from over SSH before loading")
	selfCheck   = flag.Bool("selfcheck", false, "read two dag dumps from stdin, separated by a blank line, and report unify/subsumption results")
)

func openLocalOrRemote(path string) (*os.File, error) {
	if *remote == "" {
		return os.Open(path)
	}

	user, addr, hasUser := strings.Cut(*remote, "@")
	if !hasUser {
		addr = user
		u, err := osuser.Current()
		if err != nil {
			return nil, err
		}
		user = u.Username
	}
	auth, _ := goph.UseAgent()
	auth = append(auth, ssh.KeyboardInteractive(askStdin))

	client, err := goph.NewUnknown(user, addr, auth)
	if err != nil {
		return nil, fmt.Errorf("could not dial remote host: %w", err)
	}
	defer client.Close()

	out, err := client.Run("cat " + shellescape.Quote(path))
	if err != nil {
		return nil, fmt.Errorf("could not read remote file %q: %w", path, err)
	}

	local, err := os.CreateTemp("", "unifycheck-*")
	if err != nil {
		return nil, err
	}
	if _, err := local.Write(out); err != nil {
		local.Close()
		return nil, err
	}
	if _, err := local.Seek(0, io.SeekStart); err != nil {
		local.Close()
		return nil, err
	}
	return local, nil
}

func askStdin(name, instruction string, questions []string, echos []bool) (answers []string, err error) {
	if len(questions) == 0 && name != "" {
		fmt.Printf("%s: %s\n", name, instruction)
	}
	answers = make([]string, len(questions))
	for i, q := range questions {
		fmt.Printf("%s ", q)
		if echos[i] {
			if _, err := fmt.Scan("%s", &answers[i]); err != nil {
				return nil, err
			}
			continue
		}
		answer, err := term.ReadPassword(syscall.Stdin)
		fmt.Println()
		if err != nil {
			return nil, err
		}
		answers[i] = string(answer)
	}
	return answers, nil
}

func loadGrammar() (*gfile.Grammar, error) {
	f, err := openLocalOrRemote(*grammarPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	return gfile.Load(f, info.Size())
}

func loadQcTree() (*quickcheck.Tree, error) {
	if *qcPath == "" {
		return nil, nil
	}
	if *qcLimit <= 0 {
		return nil, errors.New("-qc-limit must be set to a positive value when -qc is set")
	}
	f, err := openLocalOrRemote(*qcPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	root, err := gfile.DecodeDag(f)
	if err != nil {
		return nil, fmt.Errorf("decoding quick-check path file: %w", err)
	}
	return quickcheck.TreeFromDag(root, *qcLimit), nil
}

func printStats(r *unify.Runtime) {
	stats := r.Hierarchy.Stats()
	fmt.Printf("proper types:   %d\n", stats.ProperTypes)
	fmt.Printf("leaf types:     %d\n", stats.LeafTypes)
	fmt.Printf("dynamic types:  %d\n", stats.DynamicTypes)
	fmt.Printf("bitcode words:  %d\n", stats.BitcodeWords)
	fmt.Printf("glb cache size: %d\n", stats.GlbCacheSize)
}

// runSelfCheck reads two newline-separated dag dumps from stdin (grounded
// on gfile's CONSTRAINTS dump codec), unifies and subsumes them, and
// reports the outcome. The split point is the first blank line.
func runSelfCheck(r *unify.Runtime) error {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return err
	}
	parts := bytes.SplitN(data, []byte("\n\n"), 2)
	if len(parts) != 2 {
		return errors.New("stdin must contain two dag dumps separated by a blank line")
	}

	a, err := gfile.DecodeDag(bytes.NewReader(parts[0]))
	if err != nil {
		return fmt.Errorf("decoding first dag: %w", err)
	}
	b, err := gfile.DecodeDag(bytes.NewReader(parts[1]))
	if err != nil {
		return fmt.Errorf("decoding second dag: %w", err)
	}

	forward, backward := r.Subsumes(a, b)
	fmt.Printf("subsumes: forward=%v backward=%v\n", forward, backward)

	out, err := r.Unify(a, b, nil)
	if err != nil {
		fmt.Printf("unify: FAIL (%v)\n", err)
		return nil
	}
	printed, err := r.Print(out, unify.Readable)
	if err != nil {
		return err
	}
	fmt.Printf("unify: ok\n%s\n", printed)
	return nil
}

func run() error {
	flag.Parse()
	if *grammarPath == "" {
		return errors.New("-grammar is required")
	}

	g, err := loadGrammar()
	if err != nil {
		return fmt.Errorf("loading grammar: %w", err)
	}
	qc, err := loadQcTree()
	if err != nil {
		return fmt.Errorf("loading quick-check paths: %w", err)
	}

	r, err := unify.Open(g, qc)
	if err != nil {
		return fmt.Errorf("opening runtime: %w", err)
	}

	printStats(r)

	if *selfCheck {
		return runSelfCheck(r)
	}
	return nil
}

func main() {
	if err := run(); err != nil {
		var loadErr *gfile.LoadError
		if errors.As(err, &loadErr) {
			fmt.Fprintf(os.Stderr, "unifycheck: %v (section %q, offset %d)\n", loadErr, loadErr.Section, loadErr.Offset)
		} else {
			fmt.Fprintf(os.Stderr, "unifycheck: %v\n", err)
		}
		os.Exit(1)
	}
}
