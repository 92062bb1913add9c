// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package sink

import (
	"fmt"
	"time"
)

// IndexName derives the concrete index name for a summary's timestamp per
// spec §6: "{baseIndex}-yyyy-MM-dd[-HH]" in UTC.
func IndexName(baseIndex string, strategy IndexStrategy, timestampMs int64) string {
	t := time.UnixMilli(timestampMs).UTC()
	switch strategy {
	case IndexStrategyHourly:
		return fmt.Sprintf("%s-%s", baseIndex, t.Format("2006-01-02-15"))
	case IndexStrategyMonthly:
		return fmt.Sprintf("%s-%s", baseIndex, t.Format("2006-01"))
	case IndexStrategyDaily:
		fallthrough
	default:
		return fmt.Sprintf("%s-%s", baseIndex, t.Format("2006-01-02"))
	}
}
