package helper

import (
	"math/big"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"mjpegplayback/apperror"
)

// FetchFiles lists the regular files in folder carrying extension ext, sorted.
func FetchFiles(folder, ext string) ([]string, error) {
	fd, err := os.Open(folder)

	if err != nil {
		return nil, apperror.ServerError.Wrap(err)
	}

	defer func() { _ = fd.Close() }()

	names, err := fd.Readdirnames(0)

	if err != nil {
		return nil, apperror.ServerError.Wrap(err)
	}

	var files []string

	for _, name := range names {
		if !strings.EqualFold(filepath.Ext(name), ext) {
			continue
		}
		if info, err := os.Stat(filepath.Join(folder, name)); err != nil || !info.Mode().IsRegular() {
			continue
		}
		files = append(files, name)
	}

	sort.Strings(files)

	return files, nil
}

func Truncate(num float64, unit float64) float64 {
	bf := big.NewFloat(0).SetPrec(1000).SetFloat64(num)
	bu := big.NewFloat(0).SetPrec(1000).SetFloat64(unit)

	bf.Quo(bf, bu)

	i := big.NewInt(0)
	bf.Int(i)
	bf.SetInt(i)

	f, _ := bf.Mul(bf, bu).Float64()

	return f
}
