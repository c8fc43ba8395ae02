// Package cache 定义下载缓存：把 (package, filename) 映射到
// CachePath/<base64url(package)>/<base64url(filename)> 的本地文件，首次访问时
// 经仓库客户端回源下载。写入遵循「临时文件 + rename」的原子语义，磁盘上出现
// 的路径即意味着一份完整的下载副本；条目创建后不再修改，也不做淘汰。
// Web 层只依赖本包换取本地路径，不关心索引协议与下载细节。
package cache
