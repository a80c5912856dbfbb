// Package driver ties the codec together for a transport.
//
// A Driver decodes each received frame through the command registry,
// reassembles transport service datagrams, removes encapsulation layers,
// resolves supervision reports, merges partial reports and publishes the
// resulting values. In the other direction it builds commands, applies
// encapsulation and serializes them into frames no larger than one
// transport service segment.
//
//	d, err := driver.New(driver.Config{NetworkKey: key, Profile: db})
//	link, err := transport.NewLink(transport.LinkConfig{
//		Endpoint:     pipe.Controller(),
//		LocalNodeID:  1,
//		FrameHandler: d.FrameHandler(),
//	})
package driver
