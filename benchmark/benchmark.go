package benchmark

import (
	"context"
	"log"
	"net"
	"os"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/mmcloughlin/profile"

	"go.uber.org/zap"

	"example.com/oled-clock/base/timebase"
	"example.com/oled-clock/driver/ntpc"
)

// RunBenchmark performs numRequests SNTP exchanges against the server and
// prints a percentile distribution of the round-trip latency in
// microseconds. With profileCPU set, a CPU profile is written to the
// working directory.
func RunBenchmark(remoteAddr *net.UDPAddr, numRequests int, profileCPU bool) {
	if profileCPU {
		defer profile.Start(profile.CPUProfile).Stop()
	}

	hg := hdrhistogram.New(1, 50000, 5)

	ctx := context.Background()
	c := &ntpc.Client{
		Log:        zap.NewNop(),
		RemoteAddr: remoteAddr,
		Timeout:    time.Second,
	}
	err := c.Connect(ctx)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer c.Disconnect()

	for j := numRequests; j > 0; j-- {
		t0 := timebase.Now()
		_, err := c.FetchTime(ctx)
		if err != nil {
			log.Printf("Failed to fetch time: %v", err)
			continue
		}
		err = hg.RecordValue(timebase.Now().Sub(t0).Microseconds())
		if err != nil {
			log.Printf("Failed to record latency value: %v", err)
		}
	}

	_, err = hg.PercentilesPrint(os.Stdout, 1 /* ticksPerHalfDistance */, 1.0)
	if err != nil {
		log.Fatalf("Failed to print benchmark results: %v", err)
	}
}
