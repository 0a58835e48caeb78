package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ergochat/readline"
	gojson "github.com/goccy/go-json"

	"github.com/hupe1980/recordkv"
	"github.com/hupe1980/recordkv/kv"
)

const usage = `commands:
  save [id] {json}   create or update a record
  get <id>           print a record
  list               print all records in index order
  delete <id>...     delete records
  keys [prefix]      list backend keys
  index              print the cached record index
  check              list indexed ids without a record
  prune              drop indexed ids without a record
  watch              print changes of the namespace
  unwatch            stop printing changes
  help               show this help
  exit               leave the shell`

var errUsage = errors.New("usage")

// shell runs commands against an adapter.
type shell struct {
	adapter *recordkv.Adapter
	store   kv.Store

	mu  sync.Mutex // guards out
	out io.Writer

	unwatch context.CancelFunc
}

func newShell(a *recordkv.Adapter, store kv.Store, out io.Writer) *shell {
	return &shell{adapter: a, store: store, out: out}
}

func (s *shell) printf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, format, args...)
}

func (s *shell) completer() *readline.PrefixCompleter {
	return readline.NewPrefixCompleter(
		readline.PcItem("save"),
		readline.PcItem("get"),
		readline.PcItem("list"),
		readline.PcItem("delete"),
		readline.PcItem("keys"),
		readline.PcItem("index"),
		readline.PcItem("check"),
		readline.PcItem("prune"),
		readline.PcItem("watch"),
		readline.PcItem("unwatch"),
		readline.PcItem("help"),
		readline.PcItem("exit"),
	)
}

func (s *shell) repl(ctx context.Context) error {
	history := ""
	if home, err := os.UserHomeDir(); err == nil {
		history = filepath.Join(home, ".recordkv_history")
	}
	rl, err := readline.NewEx(&readline.Config{
		Prompt:            "\033[32m" + s.adapter.Namespace() + "›\033[0m ",
		HistoryFile:       history,
		AutoComplete:      s.completer(),
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		return err
	}
	defer rl.Close()
	defer s.stopWatch()

	for ctx.Err() == nil {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				return nil
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		quit, err := s.exec(ctx, line)
		if errors.Is(err, errUsage) {
			s.printf("%s\n", usage)
		} else if err != nil {
			s.printf("error: %s\n", err)
		}
		if quit {
			return nil
		}
	}
	return ctx.Err()
}

// exec runs one command line. quit reports whether the shell should exit.
func (s *shell) exec(ctx context.Context, line string) (quit bool, err error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false, nil
	}
	cmd, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	args := strings.Fields(rest)

	switch strings.ToLower(cmd) {
	case "save", "put":
		return false, s.save(ctx, rest)
	case "get":
		if len(args) != 1 {
			return false, errUsage
		}
		return false, s.get(ctx, args[0])
	case "list", "ls":
		return false, s.list(ctx)
	case "delete", "del", "rm":
		if len(args) == 0 {
			return false, errUsage
		}
		return false, s.delete(ctx, args)
	case "keys":
		prefix := ""
		if len(args) > 0 {
			prefix = args[0]
		}
		return false, s.keys(ctx, prefix)
	case "index":
		s.printf("%s\n", strings.Join(s.adapter.Index(), "\n"))
		return false, nil
	case "check":
		ids, err := s.adapter.Check(ctx)
		if err != nil {
			return false, err
		}
		s.printf("dangling: %d %v\n", len(ids), ids)
		return false, nil
	case "prune":
		ids, err := s.adapter.Prune(ctx)
		if err != nil {
			return false, err
		}
		s.printf("pruned: %d %v\n", len(ids), ids)
		return false, nil
	case "watch":
		return false, s.watch(ctx)
	case "unwatch":
		s.stopWatch()
		return false, nil
	case "help", "?":
		s.printf("%s\n", usage)
		return false, nil
	case "exit", "quit", "q":
		return true, nil
	default:
		return false, fmt.Errorf("unknown command %q, type help", cmd)
	}
}

// save accepts "{json}" or "id {json}".
func (s *shell) save(ctx context.Context, rest string) error {
	var id string
	body := rest
	if !strings.HasPrefix(rest, "{") {
		id, body, _ = strings.Cut(rest, " ")
		body = strings.TrimSpace(body)
	}
	if body == "" {
		return errUsage
	}

	var attrs recordkv.Attributes
	if err := gojson.Unmarshal([]byte(body), &attrs); err != nil {
		return fmt.Errorf("invalid record: %w", err)
	}
	r := &recordkv.Record{ID: id, Attributes: attrs}
	if err := s.adapter.Save(ctx, r); err != nil {
		return err
	}
	s.printf("%s\n", r.ID)
	return nil
}

func (s *shell) get(ctx context.Context, id string) error {
	r := &recordkv.Record{ID: id, Attributes: recordkv.Attributes{}}
	if _, err := s.adapter.Fetch(ctx, r); err != nil {
		return err
	}
	return s.printRecord(r)
}

func (s *shell) list(ctx context.Context) error {
	c := recordkv.NewCollection()
	if _, err := s.adapter.Fetch(ctx, c); err != nil {
		return err
	}
	for _, r := range c.Records {
		if err := s.printRecord(r); err != nil {
			return err
		}
	}
	s.printf("(%d records)\n", c.Len())
	return nil
}

func (s *shell) delete(ctx context.Context, ids []string) error {
	c := recordkv.NewCollection()
	for _, id := range ids {
		c.Records = append(c.Records, &recordkv.Record{ID: id})
	}
	if err := s.adapter.Destroy(ctx, c); err != nil {
		return err
	}
	s.printf("deleted %d\n", len(ids))
	return nil
}

func (s *shell) keys(ctx context.Context, prefix string) error {
	l, ok := s.store.(kv.Lister)
	if !ok {
		return fmt.Errorf("backend %T cannot list keys", s.store)
	}
	keys, err := l.Keys(ctx, prefix)
	if err != nil {
		return err
	}
	for _, k := range keys {
		s.printf("%s\n", k)
	}
	return nil
}

func (s *shell) watch(ctx context.Context) error {
	s.stopWatch()
	wctx, cancel := context.WithCancel(ctx)
	err := s.adapter.Watch(wctx, func(c kv.Change) {
		s.printf("%s %s\n", c.Op, c.Key)
	})
	if err != nil {
		cancel()
		return err
	}
	s.unwatch = cancel
	s.printf("watching %s\n", s.adapter.Namespace())
	return nil
}

func (s *shell) stopWatch() {
	if s.unwatch != nil {
		s.unwatch()
		s.unwatch = nil
	}
}

func (s *shell) printRecord(r *recordkv.Record) error {
	b, err := gojson.Marshal(r.Attributes)
	if err != nil {
		return err
	}
	s.printf("%s\t%s\n", r.ID, b)
	return nil
}
