// txtrace-gen synthesizes a demo transaction trace so the output
// format can be eyeballed in a timeline viewer (ui.perfetto.dev).
package main

import (
	"fmt"
	"log"
	"math/rand"
	"os"

	"github.com/spf13/pflag"

	"github.com/dvtools/txtrace"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func run() error {
	var (
		out          = pflag.StringP("out", "o", "demo.perfetto", "output trace file")
		name         = pflag.String("name", "txtrace-demo", "trace display name")
		timeUnit     = pflag.String("time-unit", "1ns", "timestamp resolution (ns, 10ns, 1us, ...)")
		streams      = pflag.Int("streams", 2, "number of streams to generate")
		transactions = pflag.Int("transactions", 8, "transactions per stream")
		compress     = pflag.Bool("compress", false, "gzip-compress the output")
		seed         = pflag.Int64("seed", 1, "random seed")
	)
	pflag.Parse()

	if *streams < 1 || *transactions < 1 {
		pflag.Usage()
		os.Exit(2)
	}

	var opts []txtrace.Option
	if *compress {
		opts = append(opts, txtrace.WithCompression())
	}

	tr, err := txtrace.New(*out, *name, *timeUnit, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if err := tr.Close(); err != nil {
			log.Printf("Error closing trace: %v", err)
		}
	}()

	if err := generate(tr, *streams, *transactions, rand.New(rand.NewSource(*seed))); err != nil {
		return err
	}

	log.Printf("Wrote %d streams x %d transactions to %s", *streams, *transactions, *out)
	return nil
}

// generate fills the trace with nested bus-style transactions: each
// root transaction gets a child on a sub-track, typed attributes, and
// the occasional flow link to the previous root.
func generate(tr *txtrace.Trace, streams, transactions int, rng *rand.Rand) error {
	for i := 0; i < streams; i++ {
		stream, err := tr.OpenStream(
			fmt.Sprintf("bus%d", i),
			fmt.Sprintf("top.soc.bus%d", i),
			"axi",
		)
		if err != nil {
			return err
		}

		var prev *txtrace.Transaction
		now := uint64(1000)
		for j := 0; j < transactions; j++ {
			duration := uint64(rng.Intn(900) + 100)

			op := "read"
			if j%2 == 1 {
				op = "write"
			}
			root, err := stream.OpenTransaction(op, now, "burst", nil)
			if err != nil {
				return err
			}
			if err := root.AddUint("addr", rng.Uint64()&0xFFFF_FFFF, txtrace.RadixHex); err != nil {
				return err
			}
			if err := root.AddInt("len", int64(rng.Intn(16)+1), txtrace.RadixDec); err != nil {
				return err
			}
			if err := root.AddBits("resp", []byte{byte(rng.Intn(4))}, 2, txtrace.RadixBin); err != nil {
				return err
			}

			child, err := stream.OpenTransaction("data-phase", now+duration/4, "", root)
			if err != nil {
				return err
			}
			if err := child.AddDouble("utilization", rng.Float64()); err != nil {
				return err
			}
			if err := child.Close(now + duration/2); err != nil {
				return err
			}

			if prev != nil && j%3 == 0 {
				if err := prev.AddLink(root, txtrace.LinkCauseEffect, "reorder"); err != nil {
					return err
				}
			}
			if prev != nil {
				if err := prev.Close(now - 1); err != nil {
					return err
				}
			}

			prev = root
			now += duration
		}
		if prev != nil {
			if err := prev.Close(now); err != nil {
				return err
			}
		}
	}
	return nil
}
