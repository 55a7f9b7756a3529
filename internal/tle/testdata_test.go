package tle

import (
	"io"
	"log/slog"
)

var testLogger = slog.New(slog.NewJSONHandler(io.Discard, nil))

const (
	issName  = "ISS (ZARYA)"
	issLine1 = "1 25544U 98067A   25045.18032407  .00016717  00000+0  30099-3 0  9993"
	issLine2 = "2 25544  51.6412 193.5765 0003457 126.2851 233.8519 15.49874301495058"

	cssName  = "CSS (TIANHE)"
	cssLine1 = "1 48274U 21035A   25045.51782528  .00025287  00000+0  29342-3 0  9991"
	cssLine2 = "2 48274  41.4661 287.2468 0006178 301.4395  58.5937 15.60894219215457"
)

var issText = issName + "\n" + issLine1 + "\n" + issLine2 + "\n"
