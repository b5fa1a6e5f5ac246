package driver

import (
	"os"
	"runtime"
	"runtime/pprof"

	"github.com/sirupsen/logrus"
)

type Profiler struct {
	f        *os.File
	filename string
}

// NewProfiler starts a CPU profile written to filename. An empty filename
// disables profiling.
func NewProfiler(filename string) *Profiler {
	prof := new(Profiler)
	prof.filename = filename
	if filename != "" {
		var err error
		prof.f, err = os.Create(filename)
		if err != nil {
			logrus.Fatal("could not create CPU profile: ", err)
		}
		if err := pprof.StartCPUProfile(prof.f); err != nil {
			logrus.Fatal("could not start CPU profile: ", err)
		}
	}
	return prof
}

// Close stops the CPU profile and writes a heap profile next to it.
func (p *Profiler) Close() {
	if p.f == nil {
		return
	}
	pprof.StopCPUProfile()
	p.f.Close()

	runtime.GC()
	memProf, err := os.Create(p.filename + "-mem.prof")
	if err != nil {
		logrus.WithError(err).Error("could not create memory profile")
		return
	}
	defer memProf.Close()
	if err := pprof.WriteHeapProfile(memProf); err != nil {
		logrus.WithError(err).Error("could not write memory profile")
	}
}
