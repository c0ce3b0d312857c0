package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/spf13/cobra"

	"jan-server/services/listen-api/internal/domain/room"
	"jan-server/services/listen-api/internal/interfaces/httpserver/responses"
	roomres "jan-server/services/listen-api/internal/interfaces/httpserver/responses/room"
)

var schemaCmd = &cobra.Command{
	Use:   "schema [kind]",
	Short: "Print the JSON Schema of a listen-api message",
	Long: `Print the JSON Schema of the messages clients receive.

Kinds: snapshot (websocket and GET /rooms/{id}), mutation, live,
credential, error.

Examples:
  listen-cli schema snapshot
  listen-cli schema mutation --out mutation.schema.json`,
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: schemaKinds(),
	RunE:      runSchema,
}

var schemaOut string

func init() {
	schemaCmd.Flags().StringVarP(&schemaOut, "out", "o", "", "Write the schema to a file instead of stdout")
}

var schemaTypes = map[string]struct {
	value any
	title string
}{
	"snapshot":   {&room.Snapshot{}, "Room snapshot"},
	"mutation":   {&roomres.MutationResponse{}, "Room mutation response"},
	"live":       {&roomres.LiveResponse{}, "Live start response"},
	"credential": {&roomres.CredentialResponse{}, "Transport credential"},
	"error":      {&responses.ErrorResponse{}, "Error response"},
}

func schemaKinds() []string {
	kinds := make([]string, 0, len(schemaTypes))
	for kind := range schemaTypes {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

func buildSchema(kind string) (*jsonschema.Schema, error) {
	typ, ok := schemaTypes[kind]
	if !ok {
		return nil, fmt.Errorf("unknown schema kind %q (want one of %s)", kind, strings.Join(schemaKinds(), ", "))
	}

	reflector := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            false,
		ExpandedStruct:            true,
	}
	schema := reflector.Reflect(typ.value)
	schema.Title = typ.title
	return schema, nil
}

func runSchema(cmd *cobra.Command, args []string) error {
	kind := "snapshot"
	if len(args) == 1 {
		kind = args[0]
	}
	schema, err := buildSchema(kind)
	if err != nil {
		return err
	}

	data, err := schema.MarshalJSON()
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	if schemaOut == "" {
		fmt.Println(string(data))
		return nil
	}
	if err := os.WriteFile(schemaOut, data, 0644); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	fmt.Printf("Generated %s\n", schemaOut)
	return nil
}
