package testlib

import (
	"sync"
	"testing"
)

func Repeat(t *testing.T, times int, f func(t *testing.T)) {
	for i := 0; i < times; i++ {
		f(t)
	}
}

func RepeatConcurrent(t *testing.T, times int, f func(t *testing.T)) {
	wg := sync.WaitGroup{}
	wg.Add(times)
	for i := 0; i < times; i++ {
		go func() {
			defer wg.Done()
			f(t)
		}()
	}
	wg.Wait()
}
