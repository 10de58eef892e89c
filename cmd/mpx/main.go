// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"os"

	mpx "github.com/javantanna/mpx"
)

func main() {
	os.Exit(mpx.Run())
}
