// Package harness runs luma programs against scripted frames and checks the
// resulting facts.
//
// A scenario names the programs under test (files, directories or inline
// definitions), a list of frames with the markers visible in each, and
// assertions over the facts and errors every frame produced.
//
// # Scenario Format
//
// Scenarios are YAML files with the following structure:
//
//	name: lamp_lights_up
//	description: "A lamp under the watcher is lit"
//	programs:
//	  - programs/watcher.cue
//	define:
//	  - id: 12
//	    claims: ["(you) is a lamp"]
//	interval: 100ms
//	frames:
//	  - markers:
//	      - id: 12
//	        rect: [0, 0, 100, 50]
//	    expect:
//	      facts: ["(12) is a lamp"]
//	  - repeat: 3
//	assertions:
//	  - type: fact_present
//	    fact: "(12) is lit"
//	  - type: no_errors
//
// # Assertion Types
//
//   - fact_present: Verifies a fact body is in the given frame (default: last)
//   - fact_absent: Verifies a fact body is not in the given frame
//   - fact_count: Verifies how many facts in a frame contain a substring
//   - error_contains: Verifies an error log line contains text
//   - no_errors: Verifies the error log is empty
//
// # Deterministic Testing
//
// Frame times come from testutil.FrameClock and reference names from
// testutil.SequentialGenerator, so the same scenario always yields the
// same fact dump. Dumps are compared against golden files stored next to
// the scenario in golden/<name>.golden.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/lamp.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, e := range result.Errors {
//	    log.Println(e)
//	}
package harness
