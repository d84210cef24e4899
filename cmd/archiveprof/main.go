// Command archiveprof builds a sample archive repeatedly and writes a heap
// profile, for looking at allocation behavior of the serializer presets.
package main

import (
	"encoding/binary"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"runtime"
	"runtime/pprof"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/500gitnotfound/rkyv"
	"github.com/500gitnotfound/rkyv/ser"
	"github.com/500gitnotfound/rkyv/ser/allocator"
	"github.com/500gitnotfound/rkyv/ser/sharing"
	"github.com/500gitnotfound/rkyv/ser/writer"
)

type record struct {
	id      uint64
	name    string
	tags    []string
	parents []*record
}

func main() {
	var (
		configPath string
		profile    string
		iterations int
		memProfile string
		pprofAddr  string
		linger     time.Duration
		verbose    bool
	)
	pflag.StringVarP(&configPath, "config", "c", "", "YAML options file")
	pflag.StringVar(&profile, "profile", "", "override the configured profile (bounded or general)")
	pflag.IntVarP(&iterations, "iterations", "n", 10000, "number of archives to build")
	pflag.StringVar(&memProfile, "memprofile", "mem.prof", "heap profile output path")
	pflag.StringVar(&pprofAddr, "pprof", "", "serve net/http/pprof on this address while running")
	pflag.DurationVar(&linger, "linger", 0, "keep the pprof server up this long after the run")
	pflag.BoolVarP(&verbose, "verbose", "v", false, "log serializer debug events")
	pflag.Parse()

	if err := run(configPath, profile, iterations, memProfile, pprofAddr, linger, verbose); err != nil {
		fmt.Fprintf(os.Stderr, "archiveprof: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, profile string, iterations int, memProfile, pprofAddr string, linger time.Duration, verbose bool) error {
	logger, err := newLogger(verbose)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck
	rkyv.SetLogger(logger)

	opts := rkyv.DefaultOptions()
	if configPath != "" {
		if opts, err = rkyv.LoadOptions(configPath); err != nil {
			return err
		}
	}
	if profile != "" {
		opts.Profile = rkyv.Profile(profile)
		if err := opts.Validate(); err != nil {
			return err
		}
	}

	if pprofAddr != "" {
		go func() {
			logger.Info("serving pprof", zap.String("addr", pprofAddr))
			if err := http.ListenAndServe(pprofAddr, nil); err != nil {
				logger.Error("pprof server stopped", zap.Error(err))
			}
		}()
	}

	f, err := os.Create(memProfile)
	if err != nil {
		return err
	}
	defer f.Close()
	runtime.MemProfileRate = 1

	records := sampleRecords()
	start := time.Now()
	size := 0
	for i := 0; i < iterations; i++ {
		data, err := rkyv.Encode(func(s ser.Capabilities) error {
			for _, r := range records {
				if _, err := encodeRecord(s, r); err != nil {
					return err
				}
			}
			return nil
		}, opts)
		if err != nil {
			return err
		}
		size = len(data)
	}
	logger.Info("run complete",
		zap.String("profile", string(opts.Profile)),
		zap.Int("iterations", iterations),
		zap.Int("archive_bytes", size),
		zap.Duration("elapsed", time.Since(start)))

	if err := pprof.WriteHeapProfile(f); err != nil {
		return err
	}
	if pprofAddr != "" && linger > 0 {
		time.Sleep(linger)
	}
	return nil
}

func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	if !verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	return cfg.Build()
}

func sampleRecords() []*record {
	root := &record{id: 1, name: "root", tags: []string{"azerty", "hello"}}
	mid := &record{id: 2, name: "mid", tags: []string{"world", "hello"}, parents: []*record{root}}
	out := []*record{root, mid}
	for i := 3; i < 64; i++ {
		out = append(out, &record{
			id:      uint64(i),
			name:    fmt.Sprintf("leaf-%d", i),
			tags:    []string{"random", "hello"},
			parents: []*record{root, mid},
		})
	}
	return out
}

// encodeRecord writes r's strings and parents first, then r itself as
// id, name reference, tag count and references, parent count and references.
func encodeRecord(s ser.Capabilities, r *record) (int, error) {
	return sharing.Serialize(s, sharing.AddressOf(r), func() (int, error) {
		refs := 1 + len(r.tags) + len(r.parents)
		l := allocator.Layout{Size: 8 * refs, Align: 8}
		scratch, err := s.Acquire(l)
		if err != nil {
			return 0, err
		}
		put := func(i, pos int) { binary.LittleEndian.PutUint64(scratch.Bytes[8*i:], uint64(pos)) }
		get := func(i int) int { return int(binary.LittleEndian.Uint64(scratch.Bytes[8*i:])) }

		pos, err := encodeString(s, r.name)
		if err != nil {
			return 0, err
		}
		put(0, pos)
		for i, tag := range r.tags {
			if pos, err = encodeString(s, tag); err != nil {
				return 0, err
			}
			put(1+i, pos)
		}
		for i, p := range r.parents {
			if pos, err = encodeRecord(s, p); err != nil {
				return 0, err
			}
			put(1+len(r.tags)+i, pos)
		}

		start, err := writer.Align(s, 8)
		if err != nil {
			return 0, err
		}
		var id [8]byte
		binary.LittleEndian.PutUint64(id[:], r.id)
		if err := s.Write(id[:]); err != nil {
			return 0, err
		}
		if err := writer.WriteRelative(s, get(0)); err != nil {
			return 0, err
		}
		for _, group := range [][2]int{{1, len(r.tags)}, {1 + len(r.tags), len(r.parents)}} {
			if err := writer.WriteUvarint(s, uint64(group[1])); err != nil {
				return 0, err
			}
			for i := group[0]; i < group[0]+group[1]; i++ {
				if err := writer.WriteRelative(s, get(i)); err != nil {
					return 0, err
				}
			}
		}
		return start, s.Release(scratch, l)
	})
}

func encodeString(s ser.Capabilities, str string) (int, error) {
	body := []byte(str)
	return sharing.Serialize(s, sharing.ContentAddress(body), func() (int, error) {
		start := s.Pos()
		if err := writer.WriteUvarint(s, uint64(len(body))); err != nil {
			return 0, err
		}
		return start, s.Write(body)
	})
}
