package capture

import "github.jpl.nasa.gov/bdube/intervalometer/edsdk"

// ShutterEntry maps a human shutter-speed label to the EDSDK Tv parameter
// byte that selects it. The full static table, reproduced from the trailing
// comment block of the original camera.c (Bulb through 1/16000), is the
// master list every attached body's advertised set is filtered against.
type ShutterEntry struct {
	Label string
	Value uint32
}

// ShutterTable is the master (unfiltered) shutter-speed table.
var ShutterTable = []ShutterEntry{
	{"Bulb", 0x0c},
	{"30\"", 0x10},
	{"25\"", 0x13},
	{"20\"", 0x14},
	{"15\"", 0x18},
	{"13\"", 0x1b},
	{"10\"", 0x1c},
	{"8\"", 0x20},
	{"6\"", 0x24},
	{"5\"", 0x25},
	{"4\"", 0x28},
	{"3\"2", 0x2b},
	{"3\"", 0x2c},
	{"2\"5", 0x2d},
	{"2\"", 0x30},
	{"1\"6", 0x33},
	{"1\"5", 0x34},
	{"1\"3", 0x35},
	{"1\"", 0x38},
	{"0\"8", 0x3b},
	{"0\"7", 0x3c},
	{"0\"6", 0x3d},
	{"0\"5", 0x40},
	{"0\"4", 0x43},
	{"0\"3", 0x44},
	{"1/4", 0x48},
	{"1/5", 0x4b},
	{"1/6", 0x4c},
	{"1/8", 0x50},
	{"1/10", 0x54},
	{"1/13", 0x55},
	{"1/15", 0x58},
	{"1/20", 0x5c},
	{"1/25", 0x5d},
	{"1/30", 0x60},
	{"1/40", 0x63},
	{"1/45", 0x64},
	{"1/50", 0x65},
	{"1/60", 0x68},
	{"1/80", 0x6b},
	{"1/90", 0x6c},
	{"1/100", 0x6d},
	{"1/125", 0x70},
	{"1/160", 0x73},
	{"1/180", 0x74},
	{"1/200", 0x75},
	{"1/250", 0x78},
	{"1/320", 0x7b},
	{"1/350", 0x7c},
	{"1/400", 0x7d},
	{"1/500", 0x80},
	{"1/640", 0x83},
	{"1/750", 0x84},
	{"1/800", 0x85},
	{"1/1000", 0x88},
	{"1/1250", 0x8b},
	{"1/1500", 0x8c},
	{"1/1600", 0x8d},
	{"1/2000", 0x90},
	{"1/2500", 0x93},
	{"1/3000", 0x94},
	{"1/3200", 0x95},
	{"1/4000", 0x98},
	{"1/5000", 0x9b},
	{"1/6000", 0x9c},
	{"1/6400", 0x9d},
	{"1/8000", 0xa0},
	{"1/10000", 0xa3},
	{"1/12800", 0xa5},
	{"1/16000", 0xa8},
}

// IsoEntry maps an ISO label to the EDSDK ISOSpeed parameter byte, per the
// "input ISOSpeed" prompt in MultiCamCui.cpp and the EDSDK header's
// documented kEdsISOSpeed_* constants.
type IsoEntry struct {
	Label string
	Value uint32
}

// IsoTable is the master (unfiltered) ISO table. Index 0, "Auto", is the
// sentinel used the same way Bulb is for shutter: past the filtered table's
// end.
var IsoTable = []IsoEntry{
	{"Auto", 0x00000000},
	{"100", 0x00000048},
	{"125", 0x0000004b},
	{"160", 0x0000004c},
	{"200", 0x00000050},
	{"250", 0x00000053},
	{"320", 0x00000054},
	{"400", 0x00000058},
	{"500", 0x0000005b},
	{"640", 0x0000005c},
	{"800", 0x00000060},
	{"1000", 0x00000063},
	{"1250", 0x00000064},
	{"1600", 0x00000068},
	{"3200", 0x00000070},
	{"6400", 0x00000078},
	{"12800", 0x00000080},
	{"25600", 0x00000088},
}

// filterShutterTable returns the subset of ShutterTable whose values appear
// in advertised, preserving the camera's reported order (spec.md §3,
// ShutterEntry / IsoEntry: "in the same order the camera advertised them").
// Bulb (the index past the end) is implicit and never itself an element.
func filterShutterTable(advertised []uint32) []ShutterEntry {
	out := make([]ShutterEntry, 0, len(advertised))
	for _, v := range advertised {
		if v == edsdk.BulbTv {
			continue
		}
		if e, ok := shutterByValue(v); ok {
			out = append(out, e)
		}
	}
	return out
}

func shutterByValue(v uint32) (ShutterEntry, bool) {
	for _, e := range ShutterTable {
		if e.Value == v {
			return e, true
		}
	}
	return ShutterEntry{}, false
}

func filterIsoTable(advertised []uint32) []IsoEntry {
	out := make([]IsoEntry, 0, len(advertised))
	for _, v := range advertised {
		if e, ok := isoByValue(v); ok {
			out = append(out, e)
		}
	}
	return out
}

func isoByValue(v uint32) (IsoEntry, bool) {
	for _, e := range IsoTable {
		if e.Value == v {
			return e, true
		}
	}
	return IsoEntry{}, false
}

// shutterPropertyID and isoPropertyID are the PropertyIDs the controller
// queries for descriptor enumeration and writes the selected values to.
var (
	shutterPropertyID = edsdk.PropTv
	isoPropertyID     = edsdk.PropISOSpeed
)
