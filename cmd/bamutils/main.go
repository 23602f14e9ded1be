package main

import (
	"log"

	"v.io/x/lib/cmdline"
)

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds | log.Lshortfile)
	cmdline.HideGlobalFlagsExcept()
	cmdline.Main(
		&cmdline.Command{
			Name:     "bamutils",
			Short:    "Filter and annotate BAM files",
			LookPath: false,
			Children: []*cmdline.Command{
				newCmdFilter(),
				newCmdTag(),
			},
		})
}
