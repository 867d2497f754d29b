package ir

// IRVersion is the PortalSpec schema version. It is part of every
// fingerprint, so bumping it invalidates recorded fingerprints.
const IRVersion = "1"
