// package services implements the external collaborators of the sync engine:
// the Spotify playlist provider, the Yoto content platform, and the spotdl
// audio acquisition tool. The [Provider], [Platform], and [Fetcher] interfaces
// are the seams the orchestrator and tests depend on.
package services
