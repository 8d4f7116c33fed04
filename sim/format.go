package sim

import (
	"fmt"
	"io"
	"text/tabwriter"
)

// WriteTable prints the points of curves as an aligned table.
func WriteTable(w io.Writer, curves ...MissRatioCurve) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "policy\tcache_size\trequests\tmisses\tmiss_ratio\tbyte_miss_ratio\tevictions\t")
	for _, c := range curves {
		for _, p := range c {
			fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%.4f\t%.4f\t%d\t\n",
				p.Policy, p.CacheSize, p.Requests, p.Misses, p.MissRatio(), p.ByteMissRatio(), p.Evictions)
		}
	}
	return tw.Flush()
}
