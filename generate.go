/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

var (
	photoName = regexp.MustCompile(`^([a-zA-Z]{3})_(\d{2})_(.*)$`)

	monthAbbrevs = map[string]string{
		"jan": "January", "feb": "February", "mar": "March", "apr": "April",
		"may": "May", "jun": "June", "jul": "July", "aug": "August",
		"sep": "September", "oct": "October", "nov": "November", "dec": "December",
	}
)

// recordFromFilename parses names like apr_24_IMG_4605.JPG.
func recordFromFilename(name string) (MemoryRecord, bool) {
	m := photoName.FindStringSubmatch(name)
	if m == nil {
		return MemoryRecord{}, false
	}

	abbr := strings.ToLower(m[1])

	month, ok := monthAbbrevs[abbr]
	if !ok {
		month = strings.ToUpper(abbr[:1]) + abbr[1:]
	}

	return MemoryRecord{
		Image: name,
		Month: month,
		Year:  "20" + m[2],
	}, true
}

func scanPhotos(dir string) ([]MemoryRecord, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	records := []MemoryRecord{}

	for _, e := range entries {
		if e.IsDir() {
			continue
		}

		if r, ok := recordFromFilename(e.Name()); ok {
			records = append(records, r)
		}
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Image < records[j].Image
	})

	return records, nil
}

func newGenerateCmd() *cobra.Command {
	var photos, output string

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Build a memory manifest from photos named like apr_24_IMG_4605.JPG",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := scanPhotos(photos)
			if err != nil {
				return err
			}

			if err := writeMemories(output, records); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d memories to %s\n", len(records), output)

			return nil
		},
	}

	cmd.Flags().StringVar(&photos, "photos", "photos", "directory to scan")
	cmd.Flags().StringVarP(&output, "output", "o", "memories.json", "manifest to write, json or yaml")

	return cmd
}
