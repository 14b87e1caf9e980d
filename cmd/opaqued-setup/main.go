// Command opaqued-setup generates a fresh server setup and prints it as
// base64 on stdout. The output is the long-term server secret: store it in
// a secrets manager and pass it to opaqued via OPAQUED_SETUP.
//
// Losing or rotating the setup invalidates every existing registration.
package main

import (
	"encoding/base64"
	"fmt"
	"os"

	"github.com/sealbox/opaqued/pake"
)

func main() {
	setup := pake.NewServerSetup()
	raw, err := setup.Serialize()
	if err != nil {
		fmt.Fprintf(os.Stderr, "serializing setup: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(base64.StdEncoding.EncodeToString(raw))
}
