package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/spf13/cobra"

	"ndsfat/internal/encoder"
	"ndsfat/internal/errs"
	"ndsfat/internal/geometry"
)

func newLayoutCmd() *cobra.Command {
	var (
		sizeStr, label string
		asCSV          bool
	)
	cmd := &cobra.Command{
		Use:   "layout",
		Short: "Print the layout a device of the given size would get",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if sizeStr == "" {
				return usagef("--size is required")
			}
			sz, err := parseSize(sizeStr)
			if err != nil {
				return usageError{err}
			}
			if sz%512 != 0 {
				return usagef("size must be multiple of 512")
			}
			geo, err := geometry.Derive(geometry.Default(), uint64(sz/512))
			if err != nil {
				return errs.WithOp("derive geometry", err)
			}
			if asCSV {
				return writeRegionsCSV(cmd.OutOrStdout(), geo)
			}
			printGeometryInfo(cmd.OutOrStdout(), geo, encoder.NormalizeLabel(label))
			return nil
		},
	}
	cmd.Flags().StringVar(&sizeStr, "size", "", "device size (e.g. 4g, 3980m, 7774208s)")
	cmd.Flags().StringVar(&label, "label", defaultLabel, "volume label shown in the report")
	cmd.Flags().BoolVar(&asCSV, "csv", false, "print the region table as CSV")
	return cmd
}

func writeRegionsCSV(w io.Writer, geo geometry.Geometry) error {
	if err := gocsv.Marshal(geo.Regions(), w); err != nil {
		return errs.New("write layout", errs.UnknownError, err)
	}
	return nil
}

func printGeometryInfo(w io.Writer, geo geometry.Geometry, label encoder.Label) {
	l := geo.Layout
	cylinders := geo.TotalSectors / uint64(l.SectorsPerTrack) / uint64(l.Heads)

	lineWidth := 79
	barHeavy := strings.Repeat("═", lineWidth)
	barLight := strings.Repeat("─", lineWidth)

	labelDisplay := label.Trimmed()
	if labelDisplay == "" {
		labelDisplay = "NO NAME"
	}

	formatRange := func(start, end uint64) string {
		if end <= start {
			return fmt.Sprintf("[%08d]", start)
		}
		return fmt.Sprintf("[%08d … %08d]", start, end)
	}

	lines := []string{
		barHeavy,
		" GEOMETRY",
		barLight,
		fmt.Sprintf(" Bytes/Sector: %-4d    Sectors/Track: %-2d    Heads: %-3d   Cylinders: %d", l.SectorSize, l.SectorsPerTrack, l.Heads, cylinders),
		fmt.Sprintf(" Total sectors: %d (%s)    Partition: %d sectors at %d", geo.TotalSectors, human(int64(geo.TotalSectors)*int64(l.SectorSize)), geo.PartitionSectors, geo.PartitionStart),
		fmt.Sprintf(" Reserved: %-4d    FATs: %-2d  Sectors/FAT: %-6d  Root cluster: %d", geo.ReservedSectors, l.FATCopies, geo.FATSize, l.RootCluster),
		fmt.Sprintf(" Cluster size: %d sectors (%d bytes)    Data clusters: %d    Free: %d", l.SectorsPerCluster, l.ClusterSize(), geo.DataClusters, geo.FreeClusters),
		fmt.Sprintf(" Media: 0x%02X  Partition type: 0x%02X  Label: %s", l.MediaDescriptor, l.PartitionType, labelDisplay),
		barLight,
		" LAYOUT (absolute sector ranges, * = written by format)",
		barLight,
	}
	for _, r := range geo.Regions() {
		mark := " "
		if r.Written {
			mark = "*"
		}
		lines = append(lines, fmt.Sprintf("%s%-16s %-24s %s", mark, r.Name, formatRange(r.Start, r.End), r.Content))
	}
	lines = append(lines, barHeavy)

	for _, line := range lines {
		fmt.Fprintln(w, line)
	}
	fmt.Fprintln(w)
}
