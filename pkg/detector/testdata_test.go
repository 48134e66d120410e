// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package detector

import (
	"github.com/agentstep/pipeline/pkg/pattern"
)

func patternLibraryWithPanickingCustom() (*pattern.Library, error) {
	return pattern.NewLibrary([]pattern.Pattern{
		{
			ID:         "flaky",
			Priority:   10,
			Confidence: 1.0,
			Triggers: []pattern.Trigger{
				pattern.CustomTrigger(func(pattern.Context) bool {
					panic("boom")
				}),
			},
		},
	})
}
