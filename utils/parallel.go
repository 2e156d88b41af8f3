// Package utils contains small shared helpers for grid processing.
package utils

import (
	"image"
	"math"
	"runtime"
	"sync"

	"go.viam.com/utils"
)

// ParallelFactor controls the max level of parallelization. This might be useful
// to set in tests where too much parallelism actually slows tests down in
// aggregate.
var ParallelFactor = runtime.GOMAXPROCS(0)

func init() {
	if ParallelFactor <= 0 {
		ParallelFactor = 1
	}
}

// ParallelForEachRow calls f once per row, spreading rows over the available
// processor threads. Rows are independent; f must not read values written for
// other rows in the same pass.
func ParallelForEachRow(rows int, f func(y int)) {
	numGroups := ParallelFactor
	if numGroups > rows {
		numGroups = rows
	}
	if numGroups <= 1 {
		for y := 0; y < rows; y++ {
			f(y)
		}
		return
	}
	groupSize := int(math.Ceil(float64(rows) / float64(numGroups)))
	var wait sync.WaitGroup
	for from := 0; from < rows; from += groupSize {
		to := from + groupSize
		if to > rows {
			to = rows
		}
		fromCopy, toCopy := from, to
		wait.Add(1)
		utils.PanicCapturingGo(func() {
			defer wait.Done()
			for y := fromCopy; y < toCopy; y++ {
				f(y)
			}
		})
	}
	wait.Wait()
}

// ParallelForEachPixel loops through the image and calls f functions for each [x, y] position.
// The image is divided into N * N blocks, where N is ParallelFactor. For each block a
// parallel Goroutine is started.
func ParallelForEachPixel(size image.Point, f func(x, y int)) {
	procs := ParallelFactor
	var waitGroup sync.WaitGroup
	waitGroup.Add(procs * procs)
	for i := 0; i < procs; i++ {
		startX := i * int(math.Floor(float64(size.X)/float64(procs)))
		var endX int
		if i < procs-1 {
			endX = (i + 1) * int(math.Floor(float64(size.X)/float64(procs)))
		} else {
			endX = size.X
		}
		for j := 0; j < procs; j++ {
			startY := j * int(math.Floor(float64(size.Y)/float64(procs)))
			var endY int
			if j < procs-1 {
				endY = (j + 1) * int(math.Floor(float64(size.Y)/float64(procs)))
			} else {
				endY = size.Y
			}
			sX, eX, sY, eY := startX, endX, startY, endY
			utils.PanicCapturingGo(func() {
				defer waitGroup.Done()
				for x := sX; x < eX; x++ {
					for y := sY; y < eY; y++ {
						f(x, y)
					}
				}
			})
		}
	}
	waitGroup.Wait()
}
