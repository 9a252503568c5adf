// Package harness runs scripted HTTP scenarios against a fresh shelf
// instance and checks the responses and the resulting database.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: widgets_evolve
//	description: "A second write adds a column"
//	markers: [widgets]
//	steps:
//	  - request:
//	      method: POST
//	      path: /widgets
//	      auth: ann
//	      body: { name: sprocket, color: red }
//	    expect:
//	      status: 201
//	      body: { id: 1 }
//	assertions:
//	  - type: columns
//	    collection: widgets
//	    columns: [id, name, color, created_at]
//	  - type: row_count
//	    collection: widgets
//	    count: 1
//	  - type: record
//	    collection: widgets
//	    id: 1
//	    expect: { color: red }
//
// A request body mapping is sent as JSON with its keys in file order,
// which is the order new columns are added in. Set form to send it
// urlencoded, or add a file to send multipart. raw sends a string
// verbatim. auth names a user; the harness registers it on first use and
// sends its bearer token.
//
// Expected bodies match as subsets: objects may carry extra keys, arrays
// must have the same length and match element by element.
//
// # Determinism
//
// Every run gets a new database in a temporary directory, a clock that
// starts at testutil.Epoch and advances one second per reading, sequential
// upload names and a fixed signing key. Identical scenarios therefore
// produce byte-identical traces, which RunWithGolden compares against
// testdata/golden/<name>.golden.
package harness
