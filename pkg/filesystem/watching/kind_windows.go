package watching

// defaultKind is the default watching backend for the platform.
const defaultKind = KindBatch
