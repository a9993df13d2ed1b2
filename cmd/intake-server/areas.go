package main

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/liveintake/intake/internal/domain/areas"
)

func areasCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "areas",
		Short: "Query the area directory",
	}

	suggestCmd := &cobra.Command{
		Use:   "suggest",
		Short: "Print suggestions for a province, district or subdistrict",
		Long: "Without --province the query matches provinces; with --province it\n" +
			"matches that province's districts; with --district as well it matches\n" +
			"subdistricts and prints their postal codes.",
		RunE: func(cmd *cobra.Command, args []string) error {
			source, _ := cmd.Flags().GetString("source")
			province, _ := cmd.Flags().GetString("province")
			district, _ := cmd.Flags().GetString("district")
			q, _ := cmd.Flags().GetString("q")

			dir, err := areas.NewLoader(zerolog.Nop()).Fetch(cmd.Context(), source)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch {
			case province != "" && district != "":
				for _, name := range areas.Suggest(areas.SubdistrictNames(dir.Subdistricts(province, district)), q) {
					fmt.Fprintf(out, "%s\t%s\n", name, dir.PostalCode(province, district, name))
				}
			case province != "":
				for _, name := range areas.Suggest(areas.DistrictNames(dir.Districts(province)), q) {
					fmt.Fprintln(out, name)
				}
			default:
				for _, name := range areas.Suggest(dir.ProvinceNames(), q) {
					fmt.Fprintln(out, name)
				}
			}
			return nil
		},
	}
	suggestCmd.Flags().String("source", "./thailand-areas.json", "directory file, http(s) URL or s3:// URI")
	suggestCmd.Flags().String("province", "", "province to narrow to")
	suggestCmd.Flags().String("district", "", "district to narrow to (needs --province)")
	suggestCmd.Flags().String("q", "", "text to match")

	cmd.AddCommand(suggestCmd)
	return cmd
}
