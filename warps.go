package livemap

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Warp struct {
	Name  string  `json:"name"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
	Yaw   float32 `json:"yaw"`
	Pitch float32 `json:"pitch"`
}

// LoadWarps reads the server's warps file (name:x:y:z:yaw:pitch per line).
// A missing file yields no warps.
func LoadWarps(path string) ([]Warp, error) {
	fd, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return []Warp{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open warps %s: %w", path, err)
	}
	defer fd.Close()

	warps := []Warp{}
	scanner := bufio.NewScanner(fd)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		values := strings.Split(line, ":")
		if len(values) < 6 {
			return nil, fmt.Errorf("warps %s line %d: expected 6 fields, got %d", path, lineNo, len(values))
		}

		var nums [5]float64
		for i := range nums {
			bitSize := 64
			if i >= 3 {
				bitSize = 32
			}
			v, err := strconv.ParseFloat(values[1+i], bitSize)
			if err != nil {
				return nil, fmt.Errorf("warps %s line %d: %w", path, lineNo, err)
			}
			nums[i] = v
		}

		warps = append(warps, Warp{
			Name:  values[0],
			X:     nums[0],
			Y:     nums[1],
			Z:     nums[2],
			Yaw:   float32(nums[3]),
			Pitch: float32(nums[4]),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read warps %s: %w", path, err)
	}

	return warps, nil
}
