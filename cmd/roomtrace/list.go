package main

import (
	"bytes"
	"fmt"

	"github.com/cwbudde/algo-acoustic/acoustic"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"
)

// ListMaterials prints the predefined materials and their coefficients.
func ListMaterials(ctx *cli.Context) error {
	setupLogging(ctx)

	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetHeader([]string{"Material", "Reflection", "Transmission"})
	for _, m := range acoustic.PredefinedMaterials() {
		r, t, err := m.Coefficients()
		if err != nil {
			return err
		}
		table.Append([]string{m.String(), fmt.Sprintf("%.2f", r), fmt.Sprintf("%.2f", t)})
	}
	table.Render()
	logger.Noticef("predefined materials\n%s", buf.String())
	return nil
}

// ListStatus prints every status code with its name and description.
func ListStatus(ctx *cli.Context) error {
	setupLogging(ctx)

	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Code", "Name", "Description"})
	for s := acoustic.StatusSuccess; ; s++ {
		name, err := acoustic.StatusString(s)
		if err != nil {
			break
		}
		desc, _ := acoustic.StatusDescription(s)
		table.Append([]string{fmt.Sprintf("%d", int(s)), name, desc})
	}
	table.Render()
	logger.Noticef("status codes\n%s", buf.String())
	return nil
}
