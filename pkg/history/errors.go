// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package history

import "errors"

// ErrNotFound is returned by Adapter.LoadConversation when no record exists
// yet for the requested conversation id. History treats this the same as a
// fresh, empty conversation rather than as a load failure.
var ErrNotFound = errors.New("history: conversation not found")
