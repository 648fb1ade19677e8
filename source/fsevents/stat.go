package fsevents

import "os"

func defaultStat(path string) (os.FileInfo, error) {
	return os.Stat(path)
}
