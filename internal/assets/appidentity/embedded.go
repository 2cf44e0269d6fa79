package appidentityassets

import _ "embed"

// YAML is the identity document compiled into the binary so callgate runs
// without a `.fulmen/app.yaml` next to it.
//
//go:embed app.yaml
var YAML []byte
