// Package models defines the core domain models for the foodguardian client.
//
// # Client Models
//
// The following models flow through the client-side components:
//   - Session: the credential token and subject id of the signed-in actor
//   - Coordinate: a validated latitude/longitude pair
//   - Tag / TagSet: food categories a subscriber can follow
//   - PreferenceSet / PreferenceUpdate: a subscriber's saved interests
//   - UploadRecord: the backend's answer to an image upload
//   - StoreRegistration / StoreProfile: the store onboarding payloads
//
// # Backend Models
//
// User is the account record kept by the development backend. The client
// never sees a User directly; it only receives the JSON projection of it.
//
// # Design Principles
//
// 1. **Validity by construction**: a Coordinate can only be obtained through
//    NewCoordinate (or JSON decoding, which calls it), so an out-of-range or
//    half-populated location cannot exist.
// 2. **Optional means pointer**: optional fields are pointers and a nil
//    pointer is the only representation of "absent".
// 3. **Avoid circular references**: relationships use ID strings.
package models
