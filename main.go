// Public domain.

package main

import "github.com/lsst-sims/makelsstobs/internal/obsprog"

func main() {
	obsprog.Main()
}
